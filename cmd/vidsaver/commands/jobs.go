package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidsaver/vidsaver/db"
	"github.com/vidsaver/vidsaver/logger"
	"github.com/vidsaver/vidsaver/queue"
)

// JobsCmd lists download jobs directly from the database
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List download jobs",
	Long: `List download jobs, newest first.

Status filters:
  queued      - Jobs waiting to be downloaded
  downloading - Jobs currently being downloaded
  completed   - Successfully downloaded jobs
  failed      - Jobs that exhausted their retries

Examples:
  vidsaver jobs                     # List recent jobs
  vidsaver jobs --status failed     # List terminally failed jobs
  vidsaver jobs --owner 10.0.0.5    # List one owner's jobs`,
	RunE: runJobs,
}

func init() {
	JobsCmd.Flags().String("status", "", "Filter by status")
	JobsCmd.Flags().String("owner", "", "Filter by owner")
	JobsCmd.Flags().Int("limit", 20, "Maximum number of jobs to show")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return err
	}
	defer database.Close()

	store := queue.NewStore(database)

	statusFilter, _ := cmd.Flags().GetString("status")
	owner, _ := cmd.Flags().GetString("owner")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := queue.ListFilter{Owner: owner, Limit: limit}
	if statusFilter != "" {
		// The CLI speaks the public vocabulary, same as the API.
		if statusFilter == "downloading" {
			filter.Status = queue.JobStatusInProgress
		} else {
			filter.Status = queue.JobStatus(statusFilter)
		}
		if !queue.IsValidStatus(string(filter.Status)) {
			return fmt.Errorf("unknown status %q", statusFilter)
		}
	}

	jobs, err := store.ListJobs(filter)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %-8s %-20s %s\n", "JOB ID", "STATUS", "ATTEMPT", "CREATED", "URL")
	fmt.Printf("%-10s %-12s %-8s %-20s %s\n", "------", "------", "-------", "-------", "---")

	for _, job := range jobs {
		status := string(job.Status)
		if job.Status == queue.JobStatusInProgress {
			status = "downloading"
		}
		fmt.Printf("%-10s %-12s %-8d %-20s %s\n",
			truncate(job.ID, 10),
			status,
			job.AttemptCount,
			job.CreatedAt.Format("2006-01-02 15:04"),
			truncate(job.SourceURL, 60))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

// truncate shortens a string to max characters for table display
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
