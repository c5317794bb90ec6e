package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"finetune-orchestrator/core/models"
	"finetune-orchestrator/core/spec"
)

var rootCmd = &cobra.Command{Use: "tunectl", Short: "Control fine-tuning jobs"}

var serverAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8000", "orchestrator address")
	listCmd.Flags().String("user", "", "Filter jobs by owner")
	listCmd.Flags().Int("limit", 50, "Maximum number of jobs to return")
	rootCmd.AddCommand(submitCmd, statusCmd, listCmd, cancelCmd, estimateCmd, modelsCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit [spec.yaml]",
	Short: "Submit a fine-tuning job from a YAML spec",
	Example: `
# Submit the job described in tune.yaml
tunectl submit tune.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		specYAML, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		req, err := spec.ParseTuningSpec(specYAML)
		if err != nil {
			log.Fatal(err)
		}
		var resp struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
		postJSON("/v1/jobs", req, &resp)
		fmt.Println("Submitted job:", resp.JobID)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [jobID]",
	Short: "Query the status of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var job models.Job
		getJSON("/v1/jobs/"+args[0], &job)
		fmt.Printf("Job %s: %s (%.1f%%)\n", job.ID, job.State, job.Progress)
		for _, line := range job.Logs {
			fmt.Println(" ", line)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Run: func(cmd *cobra.Command, args []string) {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		q := url.Values{}
		if user != "" {
			q.Set("user_id", user)
		}
		q.Set("limit", fmt.Sprint(limit))

		var resp struct {
			Items []models.Job `json:"items"`
		}
		getJSON("/v1/jobs?"+q.Encode(), &resp)
		for _, job := range resp.Items {
			fmt.Printf("%s  %-10s  %6.1f%%  %s\n", job.ID, job.State, job.Progress, job.Model)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [jobID]",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Status string `json:"status"`
		}
		postJSON("/v1/jobs/"+args[0]+"/cancel", nil, &resp)
		fmt.Println("Job status:", resp.Status)
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate [spec.yaml]",
	Short: "Estimate the cost of a job before launching it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		specYAML, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		req, err := spec.ParseTuningSpec(specYAML)
		if err != nil {
			log.Fatal(err)
		}
		var resp struct {
			EstimatedCost float64 `json:"estimated_cost"`
			Currency      string  `json:"currency"`
			DurationHours float64 `json:"duration_hours"`
			CostPerHour   float64 `json:"cost_per_hour"`
		}
		postJSON("/v1/cost-estimate", req, &resp)
		fmt.Printf("Estimated: %.2f %s (%.1fh at %.2f/h)\n",
			resp.EstimatedCost, resp.Currency, resp.DurationHours, resp.CostPerHour)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available for fine-tuning",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Models []models.CatalogEntry `json:"models"`
		}
		getJSON("/v1/models", &resp)
		for _, m := range resp.Models {
			fmt.Printf("%-16s %s\n", m.Name, m.Description)
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [jobID]",
	Short: "Follow a job's live status feed",
	Example: `
# Stream updates until the job reaches a terminal state
tunectl watch job_1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wsURL, err := websocketURL(serverAddr, "/v1/jobs/"+args[0]+"/stream")
		if err != nil {
			log.Fatal(err)
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		for {
			var job models.Job
			if err := conn.ReadJSON(&job); err != nil {
				return
			}
			fmt.Printf("%s  %-10s  %6.1f%%\n", job.ID, job.State, job.Progress)
			if job.State.Terminal() {
				return
			}
		}
	},
}

// websocketURL rewrites an http(s) base address into its ws(s) form
func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	return u.String(), nil
}

func getJSON(path string, out interface{}) {
	resp, err := http.Get(serverAddr + path)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	decodeResponse(resp, out)
}

func postJSON(path string, in, out interface{}) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			log.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := http.Post(serverAddr+path, "application/json", body)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) {
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		log.Fatalf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatal(err)
	}
}
