package query

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// QueryCmd sends raw actions to the server
var QueryCmd = &cobra.Command{
	Use:   "query [action] [args...]",
	Short: "Send a raw query to the server",
	Long: `Send a raw query to the server and print the response. The action is sent as is, the arguments are parsed as literals (plain text is a str, typed values are written as type:literal, e.g. uint8:7).

With --batch every line of stdin is one query, all queries are sent in one pipeline.`,
	Example: `  skv query CREATE TABLE app:users "keymap(str,uint)"
  skv query --use app:users SET alice uint64:42
  printf 'HEYA\nWHEREAMI\n' | skv query --batch`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupClientFlags(QueryCmd)

	key := "batch"
	QueryCmd.Flags().Bool(key, false, util.WrapString("Read one query per line from stdin and send them as a pipeline"))
}

func run(cmd *cobra.Command, args []string) error {
	var queries []protocol.Query
	if viper.GetBool("batch") {
		qs, err := readQueries(bufio.NewScanner(os.Stdin))
		if err != nil {
			return err
		}
		queries = qs
	} else {
		if len(args) == 0 {
			return fmt.Errorf("no action given")
		}
		q, err := parseQuery(args)
		if err != nil {
			return err
		}
		queries = []protocol.Query{q}
	}
	if len(queries) == 0 {
		return nil
	}

	cmd.SilenceUsage = true
	c, err := util.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	resps, err := c.Pipeline(queries)
	if err != nil {
		return err
	}
	failed := 0
	for _, resp := range resps {
		fmt.Println(resp)
		if resp.IsError() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(resps))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func parseQuery(fields []string) (protocol.Query, error) {
	vs, err := util.ParseValues(fields[1:])
	if err != nil {
		return protocol.Query{}, err
	}
	return protocol.Query{Action: fields[0], Args: vs}, nil
}

// readQueries reads one whitespace separated query per line, blank lines and lines
// starting with # are skipped
func readQueries(sc *bufio.Scanner) ([]protocol.Query, error) {
	var queries []protocol.Query
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		q, err := parseQuery(strings.Fields(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		queries = append(queries, q)
	}
	return queries, sc.Err()
}
