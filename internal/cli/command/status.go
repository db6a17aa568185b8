package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/cidmesh-go/internal/cli/connection"
	"github.com/yndnr/cidmesh-go/internal/cli/output"
	"github.com/yndnr/cidmesh-go/internal/server/httpserver/handler"
)

// StatusCommand shows the status and counters of a running node.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show node status and routing counters",
		Flags:  clientFlags(),
		Action: nodeStatus,
	}
}

// NodesCommand lists the nodes known to a running node.
func NodesCommand() *cli.Command {
	return &cli.Command{
		Name:   "nodes",
		Usage:  "List the cluster nodes known to a node",
		Flags:  clientFlags(),
		Action: listNodes,
	}
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		adminFlag(),
		outputFlag(),
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: connection.DefaultTimeout,
		},
	}
}

func newClient(c *cli.Context) *connection.HTTPClient {
	return connection.NewHTTPClient(c.String("admin"), c.Duration("timeout"))
}

func nodeStatus(c *cli.Context) error {
	client := newClient(c)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var resp handler.StatusResponse
	if err := client.GetJSON(ctx, "/v1/status", &resp); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printResult(c, statusResult{resp})
}

func listNodes(c *cli.Context) error {
	client := newClient(c)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var resp handler.NodesResponse
	if err := client.GetJSON(ctx, "/v1/nodes", &resp); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printResult(c, nodesResult{resp})
}

type statusResult struct {
	handler.StatusResponse `yaml:",inline"`
}

// Table renders the status as key/value rows.
func (r statusResult) Table() *output.Table {
	t := &output.Table{}
	t.SetHeaders("FIELD", "VALUE")
	t.AddRowf("node", r.NodeID)
	t.AddRowf("version", r.Version)
	t.AddRowf("public", r.PublicAddr)
	t.AddRowf("cluster", r.ClusterAddr)
	t.AddRowf("ready", r.Ready)
	t.AddRowf("nodes", r.Nodes)

	cs := r.Counters
	t.AddRowf("forwarded", cs.Forwarded)
	t.AddRowf("dropped_foreign", cs.DroppedForeign)
	t.AddRowf("backwarded", cs.Backwarded)
	t.AddRowf("dropped_backward", cs.DroppedBackward)
	t.AddRowf("processed_forwarded", cs.ProcessedForwarded)
	t.AddRowf("sent_backwarded", cs.SentBackwarded)
	t.AddRowf("membership_sent", cs.MembershipSent)
	t.AddRowf("membership_received", cs.MembershipReceived)
	t.AddRowf("received_datagrams", cs.ReceivedDatagrams)
	t.AddRowf("local_deliveries", cs.LocalDeliveries)
	t.AddRowf("direct_records", cs.DirectRecords)
	t.AddRowf("malformed", cs.Malformed)
	t.AddRowf("send_errors", cs.SendErrors)
	return t
}

type nodesResult struct {
	handler.NodesResponse `yaml:",inline"`
}

// Table renders one row per node. Static nodes show "-" as last seen.
func (r nodesResult) Table() *output.Table {
	t := &output.Table{}
	t.SetHeaders("ID", "ADDRESS", "LAST SEEN")
	for _, n := range r.Nodes {
		seen := "-"
		if n.LastSeen != nil {
			seen = n.LastSeen.Format(time.RFC3339)
		}
		t.AddRowf(n.ID, n.Address, seen)
	}
	return t
}
