package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	Preview *bool
	Full    *bool

	// Data source
	DB    *string
	Query *string
	CSV   *string

	// Filters
	Where *string

	// Output
	Output *string
	XLSX   *string
	Sheet  *string

	// Engine options
	MaxTimeMs *int

	// Options
	Config      *string
	MetricsAddr *string
	Verbose     *bool

	// Config Creation
	CreateConfig *bool

	Version *bool
	Help    *bool
}

// ParseFlags parses command-line flags
func ParseFlags() *Flags {
	flags := &Flags{
		Preview: flag.Bool("preview", false, "Calculate an adaptive example of the result"),
		Full:    flag.Bool("full", false, "Calculate the complete result"),

		DB:    flag.String("db", "", "SQLite database path (use with --query)"),
		Query: flag.String("query", "", "SQL query to calculate"),
		CSV:   flag.String("csv", "", "CSV file to calculate"),

		Where: flag.String("where", "", "Column filters, e.g. \"age>=30,name~a%\""),

		Output: flag.String("out", "", "Write result as CSV to file (default: print to stdout)"),
		XLSX:   flag.String("xlsx", "", "Write result as XLSX to file"),
		Sheet:  flag.String("sheet", "", "XLSX sheet name"),

		MaxTimeMs: flag.Int("max-time-ms", 0, "Soft time budget for example calculation in ms"),

		Config:      flag.String("config", "", "Path to config file"),
		MetricsAddr: flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)"),
		Verbose:     flag.Bool("verbose", false, "Enable debug logging"),

		CreateConfig: flag.Bool("create-config", false, "Create a sample config file"),

		Version: flag.Bool("version", false, "Show version"),
		Help:    flag.Bool("help", false, "Show help"),
	}

	flag.Parse()
	return flags
}
