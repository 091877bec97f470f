package kv

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseValue(args[0])
			if err != nil {
				return err
			}
			v, loaded, err := rpcClient.Get(key)
			if err != nil {
				return err
			}
			if !loaded {
				fmt.Println("(nil)")
				return nil
			}
			fmt.Println(v)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key, an existing value is overwritten",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := util.ParseValues(args)
			if err != nil {
				return err
			}
			if err := rpcClient.Set(kv[0], kv[1]); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [value]",
		Short: "Overwrites the value of an existing key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := util.ParseValues(args)
			if err != nil {
				return err
			}
			if err := rpcClient.Update(kv[0], kv[1]); err != nil {
				return err
			}
			fmt.Println("updated successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseValue(args[0])
			if err != nil {
				return err
			}
			if err := rpcClient.Delete(key); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseValue(args[0])
			if err != nil {
				return err
			}
			ok, err := rpcClient.Exists(key)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [limit]",
		Short: "Lists the keys of the current table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var limit uint64
			if len(args) == 1 {
				l, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("limit must be a number: %w", err)
				}
				limit = l
			}
			keys, err := rpcClient.Keys(limit)
			if err != nil {
				return err
			}
			printList(keys)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of entries of the current table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.DBSize()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
)

func printList(vs []value.Value) {
	if len(vs) == 0 {
		fmt.Println("(empty)")
		return
	}
	for i, v := range vs {
		fmt.Printf("%d) %s\n", i+1, v)
	}
}
