// aspforge is an interactive assistant for developing Answer Set
// Programming encodings: a language model proposes encoding increments,
// clingo solves them, and independently generated checkers validate the
// user's constraints each round.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "aspforge",
	Short: "Iterative ASP encoding development with model-generated increments and checkers",
	Long: `aspforge grows an ASP (clingo) encoding for your combinatorial problem one
round at a time: the model proposes rule groups and an example instance,
clingo solves them, and independently generated checker programs validate
your stated constraints against the answer sets. You steer each round and
decide when the encoding is done.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "audit database path (default: discover .aspforge/aspforge.db)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
