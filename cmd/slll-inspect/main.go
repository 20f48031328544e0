// slll-inspect is a read-only CLI for browsing a node's persisted
// counter and peer-table state, adapted from the teacher's
// cmd/agsys-db tool (same tabwriter table layout, same --database
// flag convention) onto the two tables internal/store defines.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var (
	dbPath string

	rootCmd = &cobra.Command{
		Use:   "slll-inspect",
		Short: "Inspect a slll-node's persisted store",
	}

	countersCmd = &cobra.Command{
		Use:   "counters",
		Short: "Show persisted outbound counters",
		RunE:  showCounters,
	}

	peersCmd = &cobra.Command{
		Use:   "peers",
		Short: "Show persisted peer table",
		RunE:  showPeers,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "/var/lib/slll/node.db", "Store database file path")
	rootCmd.AddCommand(countersCmd)
	rootCmd.AddCommand(peersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath+"?mode=ro")
}

func showCounters(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT sender_id, counter, updated_at FROM outbound_counter ORDER BY sender_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SENDER ID\tCOUNTER\tUPDATED AT")
	fmt.Fprintln(w, "---------\t-------\t----------")

	for rows.Next() {
		var senderID uint32
		var counter uint64
		var updatedAt string
		if err := rows.Scan(&senderID, &counter, &updatedAt); err != nil {
			return err
		}
		fmt.Fprintf(w, "%#08x\t%d\t%s\n", senderID, counter, updatedAt)
	}
	return w.Flush()
}

func showPeers(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT sender_id, last_counter, first_seen, last_seen FROM peers ORDER BY sender_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SENDER ID\tLAST COUNTER\tFIRST SEEN\tLAST SEEN")
	fmt.Fprintln(w, "---------\t------------\t----------\t---------")

	for rows.Next() {
		var senderID uint32
		var lastCounter uint64
		var firstSeen, lastSeen string
		if err := rows.Scan(&senderID, &lastCounter, &firstSeen, &lastSeen); err != nil {
			return err
		}
		fmt.Fprintf(w, "%#08x\t%d\t%s\t%s\n", senderID, lastCounter, firstSeen, lastSeen)
	}
	return w.Flush()
}
