package cmd

import (
	"context"

	"github.com/lance6716/procdiff/pkg/procdiff"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "procdiff",
		Short: "A tool used to check a tuned stored procedure returns the same results as the original",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &procdiff.Config{}
			if configFile != "" {
				var err error
				cfg, err = procdiff.LoadConfig(configFile)
				if err != nil {
					return errors.Trace(err)
				}
			}
			applyFlags(cmd, cfg)
			return procdiff.Run(cmd.Context(), cfg)
		},
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var (
	configFile  string
	taskName    string
	workDir     string
	host        string
	port        int
	user        string
	password    string
	database    string
	caseTable   string
	caseFile    string
	reportFile  string
	timeout     int
	retries     int
	concurrency int
	tolerance   float64
)

// applyFlags overrides file-provided settings with flags the user set
// explicitly, so a config file and flags can be mixed.
func applyFlags(cmd *cobra.Command, cfg *procdiff.Config) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("task-name", func() { cfg.TaskName = taskName })
	set("work-dir", func() { cfg.WorkDir = workDir })
	set("host", func() { cfg.DB.Host = host })
	set("port", func() { cfg.DB.Port = port })
	set("user", func() { cfg.DB.User = user })
	set("password", func() { cfg.DB.Password = password })
	set("database", func() { cfg.DB.Database = database })
	set("case-table", func() { cfg.CaseTable = caseTable })
	set("case-file", func() { cfg.CaseFile = caseFile })
	set("report", func() { cfg.ReportFile = reportFile })
	set("timeout", func() { cfg.CallTimeoutSeconds = timeout })
	set("retries", func() { cfg.MaxRetries = &retries })
	set("concurrency", func() { cfg.MaxConcurrentCases = concurrency })
	set("tolerance", func() { cfg.FloatTolerance = tolerance })
}

func init() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&taskName, "task-name", "", "task name stamped on the report")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "work directory")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 3306, "database port")
	rootCmd.PersistentFlags().StringVar(&user, "user", "root", "database user")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "database password")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "database holding both procedure variants")
	rootCmd.PersistentFlags().StringVar(&caseTable, "case-table", "", "table holding registered test cases")
	rootCmd.PersistentFlags().StringVar(&caseFile, "case-file", "", "JSON file holding test cases, instead of the case table")
	rootCmd.PersistentFlags().StringVar(&reportFile, "report", "", "output path of the HTML report")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 300, "per-call timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 1, "retries of one invocation on connection loss")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 1, "max concurrently running test cases")
	rootCmd.PersistentFlags().Float64Var(&tolerance, "tolerance", 0, "absolute tolerance for float/decimal comparison")
}
