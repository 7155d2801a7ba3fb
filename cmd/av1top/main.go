// Command av1top is a read-only periodic snapshot of daemon state: host
// resource usage and job counts, rendered as a table on a fixed interval.
// It is a thin client over the job store; it owns no daemon state.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/IONIQ6000/av1-doc-sub000/internal/config"
	"github.com/IONIQ6000/av1-doc-sub000/internal/jobstore"
	"github.com/IONIQ6000/av1-doc-sub000/internal/resources"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("136"))
)

func main() {
	configPath := flag.String("config", "/etc/av1d/config.json", "path to the daemon's JSON config file")
	interval := flag.Duration("interval", 5*time.Second, "refresh interval")
	once := flag.Bool("once", false, "print a single snapshot and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	for {
		render(cfg)
		if *once {
			return
		}
		time.Sleep(*interval)
	}
}

func render(cfg config.Config) {
	snap := resources.Sample(200*time.Millisecond, cfg.JobStateDir)

	jobs, err := jobstore.LoadAll(cfg.JobStateDir)
	if err != nil {
		fmt.Printf("error loading jobs from %s: %v\n", cfg.JobStateDir, err)
		return
	}

	counts := map[jobstore.Status]int{}
	for _, job := range jobs {
		counts[job.Status]++
	}

	fmt.Println(titleStyle.Render("av1d monitor"))
	fmt.Printf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("cpu"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.CPUPercent)),
		labelStyle.Render("mem"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.MemPercent)),
		labelStyle.Render("disk"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.DiskPercent)),
	)
	fmt.Printf("%s %s   %s %s   %s %s   %s %s   %s %s\n",
		pendingStyle.Render("pending"), valueStyle.Render(fmt.Sprintf("%d", counts[jobstore.StatusPending])),
		runningStyle.Render("running"), valueStyle.Render(fmt.Sprintf("%d", counts[jobstore.StatusRunning])),
		successStyle.Render("success"), valueStyle.Render(fmt.Sprintf("%d", counts[jobstore.StatusSuccess])),
		skippedStyle.Render("skipped"), valueStyle.Render(fmt.Sprintf("%d", counts[jobstore.StatusSkipped])),
		failedStyle.Render("failed"), valueStyle.Render(fmt.Sprintf("%d", counts[jobstore.StatusFailed])),
	)

	for _, job := range recentJobs(jobs, 10) {
		fmt.Printf("  %-8s %s\n", statusLabel(job.Status), job.SourcePath)
	}
	fmt.Println()
}

func recentJobs(jobs []*jobstore.Job, n int) []*jobstore.Job {
	if len(jobs) <= n {
		return jobs
	}
	return jobs[len(jobs)-n:]
}

func statusLabel(status jobstore.Status) string {
	switch status {
	case jobstore.StatusSuccess:
		return successStyle.Render(string(status))
	case jobstore.StatusFailed:
		return failedStyle.Render(string(status))
	case jobstore.StatusRunning:
		return runningStyle.Render(string(status))
	case jobstore.StatusSkipped:
		return skippedStyle.Render(string(status))
	default:
		return pendingStyle.Render(string(status))
	}
}
