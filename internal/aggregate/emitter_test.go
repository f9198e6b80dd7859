package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/schema"
)

type stubRenderer struct {
	fail string
}

func (r stubRenderer) Render(name string, data any) (string, error) {
	if name == r.fail {
		return "", errors.New("boom")
	}
	a := data.(Artifact)
	return fmt.Sprintf("%s:%s.%s", name, a.Receiver, a.Name), nil
}

func TestEmit_IsPure(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	b := bindInvoice(t, db, lineItemCountSpec())

	first, err := Emit(b)
	require.NoError(t, err)
	second, err := Emit(b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, mustTable(t, db, "invoice").HasColumn("line_item_count"))
	assert.Equal(t, "Invoice", first[0].Receiver)
	assert.Equal(t, []string{"int64", "error"}, first[0].Results)
	assert.Equal(t, []string{"error"}, first[1].Results)
}

func TestEmitHooks_GroupsByRelation(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	attachSpecs(mustTable(t, db, "invoice"),
		Spec{TargetColumn: "line_item_count", ForeignTable: "invoice_line", Expression: "COUNT(*)"},
		Spec{TargetColumn: "total_amount", ForeignTable: "invoice_line", Expression: "SUM(amount)"},
	)
	_, err := NewProcessor(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	hooks := EmitHooks(mustTable(t, db, "invoice_line"))
	require.Len(t, hooks, 1)
	assert.Equal(t, "InvoiceLine", hooks[0].Receiver)
	assert.Equal(t, "updateRelatedInvoice", hooks[0].Name)
	assert.Equal(t, []string{"updateLineItemCount", "updateTotalAmount"}, hooks[0].Calls)
	assert.Equal(t, Param{Name: "parent", Type: "*Invoice"}, hooks[0].Params[2])
}

func TestEmitHooks_NoneWithoutSyncUnits(t *testing.T) {
	assert.Empty(t, EmitHooks(&schema.Table{Name: "invoice_line"}))
}

func TestRenderArtifacts(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	artifacts, err := Emit(bindInvoice(t, db, lineItemCountSpec()))
	require.NoError(t, err)

	rendered, err := RenderArtifacts(stubRenderer{}, artifacts)
	require.NoError(t, err)
	assert.Equal(t, "compute:Invoice.computeLineItemCount", rendered[0].Body)
	assert.Equal(t, "update:Invoice.updateLineItemCount", rendered[1].Body)
	assert.Empty(t, artifacts[0].Body, "input left untouched")

	_, err = RenderArtifacts(stubRenderer{fail: "update"}, artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render update Invoice.updateLineItemCount")
}
