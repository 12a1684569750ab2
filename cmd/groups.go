package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sinsfetch/sinsfetch/cmd/common"
	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/urfave/cli"
)

func groups(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	fmt.Fprint(stdout, groupsTable(catalog.Groups()))
	return nil
}

func groupsTable(gs []catalog.Group) string {
	var b strings.Builder
	line := strings.Repeat("-", 42)
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "|%s|%s|%s|%s|\n",
		common.Beaut("Node", 8), common.Beaut("Record", 11), common.Beaut("Parts", 7), common.Beaut("Files", 11))
	b.WriteString("|" + strings.Repeat("-", 40) + "|\n")
	total := 0
	for _, g := range gs {
		n := len(g.Files())
		total += n
		fmt.Fprintf(&b, "|%s|%s|%s|%s|\n",
			common.Beaut(g.ID, 8),
			common.Beaut(g.Record, 11),
			common.Beaut(strconv.Itoa(g.Parts), 7),
			common.Beaut(strconv.Itoa(n), 11),
		)
	}
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "%d nodes, %d files\n", len(gs), total)
	return b.String()
}
