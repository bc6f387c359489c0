package main

import "fmt"

const version = "0.3.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("wranglecli v%s\n", version)
}

// PrintHelp prints usage information
func PrintHelp() {
	fmt.Println(`wranglecli - adaptive preview calculation for tabular data

USAGE:
  wranglecli --preview --db data.db --query "SELECT * FROM orders"
  wranglecli --full --csv orders.csv --where "total>=100" --xlsx out.xlsx

COMMANDS:
  --preview             Calculate an adaptive example of the result.
                        The engine sizes the input budget from observed
                        performance and retries within the time budget.
  --full                Calculate the complete result.
  --create-config       Create a sample config.yaml and exit.

DATA SOURCE (pick one):
  --db <path>           SQLite database, combined with --query.
  --query <sql>         SQL query to calculate.
  --csv <path>          CSV file with a header row.

FILTERS:
  --where <expr>        Comma-separated column filters applied before the
                        result is materialized. Operators: = != > >= < <= ~
                        (~ is SQL LIKE). Example: "age>=30,name~a%"

OUTPUT:
  --out <path>          Write the result as CSV.
  --xlsx <path>         Write the result as XLSX.
  --sheet <name>        XLSX sheet name.
                        Without --out/--xlsx the result prints to stdout.

OPTIONS:
  --max-time-ms <n>     Soft time budget for example calculation.
  --config <path>       Config file (engine, cache, metrics sections).
  --metrics-addr <addr> Expose Prometheus metrics, e.g. :9090.
  --verbose             Debug logging.
  --version             Show version.

EXAMPLES:
  # Quick preview of a large table
  wranglecli --preview --db sales.db --query "SELECT * FROM orders"

  # Filtered preview with a tight time budget
  wranglecli --preview --db sales.db --query "SELECT * FROM orders" \
      --where "region=EU,total>1000" --max-time-ms 500

  # Full export to Excel
  wranglecli --full --db sales.db --query "SELECT * FROM orders" \
      --xlsx orders.xlsx --sheet Orders`)
}
