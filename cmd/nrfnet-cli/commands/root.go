// Package commands holds the nrfnet-cli subcommands. They talk to the
// status API of a running nrfnet node.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/nrfnet/nrfnet/pkg/nrfnet"
)

var log = logging.MustGetLogger("nrfnet-cli")

var apiAddr string

var rootCmd = &cobra.Command{
	Use:   "nrfnet-cli",
	Short: "Command Line Interface for nrfnet",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiAddr, "api", "", "localhost:8670", "node status API address")
	rootCmd.AddCommand(
		statusCmd,
		neighborsCmd,
		metricsCmd,
	)
}

// Execute executes root CLI command.
func Execute() {
	rootCmd.Execute() //nolint:errcheck
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node state: node id, comms state, neighbors, uptime",
	Run: func(_ *cobra.Command, _ []string) {
		var status nrfnet.Status
		apiGet("/api/status", &status)

		fmt.Printf("session:     %s\n", status.SessionID)
		fmt.Printf("interface:   %s\n", status.Interface)
		fmt.Printf("channel:     %d\n", status.Channel)
		fmt.Printf("uptime:      %s\n", time.Duration(status.UptimeSeconds*float64(time.Second)).Round(time.Second))
		fmt.Printf("node id:     %d\n", status.Mesh.NodeID)
		fmt.Printf("comms state: %s\n", status.Mesh.CommsState)
		fmt.Printf("radio state: %s\n", status.Mesh.RadioState)
		fmt.Printf("neighbors:   %v\n", status.Mesh.Neighbors)
		fmt.Printf("queue depth: %d\n", status.Mesh.QueueDepth)
		fmt.Printf("in flight:   %d\n", status.AckInFlight)
	},
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "List known neighbor node ids",
	Run: func(_ *cobra.Command, _ []string) {
		var neighbors []int
		apiGet("/api/neighbors", &neighbors)

		if len(neighbors) == 0 {
			fmt.Println("no neighbors")
			return
		}
		for _, id := range neighbors {
			fmt.Println(id)
		}
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Dump the node's Prometheus metrics",
	Run: func(_ *cobra.Command, _ []string) {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", apiAddr))
		if err != nil {
			log.Fatal("API connection failed: ", err)
		}
		defer resp.Body.Close()

		if _, err := io.Copy(cmdOut(), resp.Body); err != nil {
			log.Fatal("Failed to read metrics: ", err)
		}
	},
}

func apiGet(path string, v interface{}) {
	resp, err := http.Get(fmt.Sprintf("http://%s%s", apiAddr, path))
	if err != nil {
		log.Fatal("API connection failed: ", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		log.Fatal("Failed to decode response: ", err)
	}
}

func cmdOut() io.Writer {
	return rootCmd.OutOrStdout()
}
