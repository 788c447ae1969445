package dappbay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func row(name, category, users, change, txn, logo string) string {
	return fmt.Sprintf(`<tr>
  <td>1</td>
  <td><span>-</span></td>
  <td><a href="/detail"><img src=%q><p>%s</p><span>desc</span></a></td>
  <td>%s</td>
  <td>%s</td>
  <td>%s</td>
  <td>%s</td>
</tr>`, logo, name, category, users, change, txn)
}

func TestParseRows(t *testing.T) {
	rows := []string{
		row("PancakeSwap", "DeFi", "1.2M", "+5.4%", "3.4M", "/logos/cake.png"),
		row("Venus", "Lending", "800K", "-2.1%", "120,345", "/logos/venus.png"),
	}

	records := parseRows(rows, "dappbay", 10, zap.NewNop())
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "dappbay", first.SourceID)
	assert.Equal(t, "PancakeSwap", first.DisplayName)
	assert.Equal(t, "DeFi", first.Category)
	assert.Equal(t, "/logos/cake.png", first.LogoRef)
	assert.Equal(t, 1.2e6, first.Metrics["users"])
	assert.Equal(t, 5.4, first.Metrics["change"])
	assert.Equal(t, 3.4e6, first.Metrics["txn"])

	assert.Equal(t, 800_000.0, records[1].Metrics["users"])
	assert.Equal(t, -2.1, records[1].Metrics["change"])
	assert.Equal(t, 120345.0, records[1].Metrics["txn"])
}

func TestParseRowsSkipsPlaceholders(t *testing.T) {
	rows := []string{
		row("Unknown", "DeFi", "1", "+1%", "1", ""),
		row("---", "DeFi", "1", "+1%", "1", ""),
		row("", "DeFi", "1", "+1%", "1", ""),
		row("Kept", "DeFi", "1", "+1%", "1", ""),
	}

	records := parseRows(rows, "dappbay", 10, zap.NewNop())
	require.Len(t, records, 1)
	assert.Equal(t, "Kept", records[0].DisplayName)
}

func TestParseRowsUnparseableMetricsStayAbsent(t *testing.T) {
	rows := []string{row("Partial", "GameFi", "N/A", "--", "2.1K", "")}

	records := parseRows(rows, "dappbay", 10, zap.NewNop())
	require.Len(t, records, 1)

	_, ok := records[0].Metrics["users"]
	assert.False(t, ok)
	_, ok = records[0].Metrics["change"]
	assert.False(t, ok)
	assert.Equal(t, 2100.0, records[0].Metrics["txn"])
}

func TestParseRowsHonorsLimit(t *testing.T) {
	var rows []string
	for i := 0; i < 25; i++ {
		rows = append(rows, row(fmt.Sprintf("Dapp%d", i), "DeFi", "1K", "+1%", "1K", ""))
	}

	records := parseRows(rows, "dappbay", 10, zap.NewNop())
	assert.Len(t, records, 10)
}

func TestParseRowsLazyLogoFallback(t *testing.T) {
	rows := []string{`<tr>
  <td>1</td><td></td>
  <td><a><img data-src="/lazy/cake.png"><p>PancakeSwap</p></a></td>
  <td>DeFi</td><td>1K</td><td>+1%</td><td>1K</td>
</tr>`}

	records := parseRows(rows, "dappbay", 10, zap.NewNop())
	require.Len(t, records, 1)
	assert.Equal(t, "/lazy/cake.png", records[0].LogoRef)
}
