package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"aggregen/internal/aggregate"
	"aggregen/internal/buildpass"
)

// printSummary lists every resolved aggregate column with its query, the
// columns the pass added, and the files it would write.
func printSummary(w io.Writer, result *buildpass.Result) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan)

	if result.Aggregates.BindingCount() == 0 {
		yellow.Fprintln(w, "No aggregate columns declared.")
		return
	}

	for _, tr := range result.Aggregates.Tables {
		fmt.Fprintf(w, "%s\n", tr.Table.QualifiedName())

		added := make(map[string]bool, len(tr.AddedColumns))
		for _, col := range tr.AddedColumns {
			added[col.Name] = true
		}
		queries := computeQueries(tr.Artifacts)

		for _, b := range tr.Bindings {
			marker := "  "
			if added[b.TargetColumn] {
				marker = green.Sprint("+ ")
			}
			fmt.Fprintf(w, "  %s%s = %s of %s via %s\n",
				marker,
				b.TargetColumn,
				b.Expression,
				b.Child.QualifiedName(),
				foreignKeyLabel(b),
			)
			if q, ok := queries[b.TargetColumn]; ok {
				cyan.Fprintf(w, "      %s\n", q)
			}
		}
	}

	fmt.Fprintln(w)
	green.Fprintf(w, "%d aggregate column(s), %d generated method(s), %d file(s)\n",
		result.Aggregates.BindingCount(),
		result.Aggregates.ArtifactCount(),
		len(result.Files),
	)
	if result.DDL != "" {
		yellow.Fprintf(w, "%d column(s) need DDL\n", result.AddedColumnCount())
	}
}

// computeQueries maps target columns to their compute query. Indexes restart
// per behavior; target columns are unique per table.
func computeQueries(artifacts []aggregate.Artifact) map[string]string {
	queries := make(map[string]string)
	for _, a := range artifacts {
		if a.Kind == aggregate.ArtifactCompute {
			queries[a.Column] = a.Query.SQL
		}
	}
	return queries
}

func foreignKeyLabel(b aggregate.Binding) string {
	cols := strings.Join(b.ForeignKey.ColumnNames, ", ")
	if b.ForeignKey.ConstraintName == "" {
		return "(" + cols + ")"
	}
	return b.ForeignKey.ConstraintName + " (" + cols + ")"
}
