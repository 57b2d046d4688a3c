package statement

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/ledger/internal/storage"
)

var at = time.Date(2025, 9, 17, 18, 56, 0, 0, time.UTC)

func sampleRows() []Row {
	return []Row{
		{Type: storage.Credit, Amount: 1000, Time: at, Description: "Admin added funds"},
		{Type: storage.Debit, Amount: 65, Time: at.Add(90 * time.Second), Description: "Transfer to bob@example.com"},
		{Type: storage.Credit, Amount: 40, Time: at.Add(5*time.Minute + 250*time.Millisecond), Description: "Received from carol, \"the\" payer"},
	}
}

func TestWrite_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRows()))

	g := goldie.New(t)
	g.Assert(t, "statement", buf.Bytes())
}

func TestWrite_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "Type,Amount,Time,Description\n", buf.String())
}

func TestRoundTrip(t *testing.T) {
	rows := sampleRows()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, len(rows))
	for i := range rows {
		assert.Equal(t, rows[i].Type, parsed[i].Type)
		assert.Equal(t, rows[i].Amount, parsed[i].Amount)
		assert.Equal(t, rows[i].Description, parsed[i].Description)
		assert.True(t, rows[i].Time.Equal(parsed[i].Time), "row %d time", i)
	}
}

func TestFromTransactions(t *testing.T) {
	txs := []storage.Transaction{
		{ID: 2, Type: storage.Debit, Amount: 5, Timestamp: at, Description: "x"},
		{ID: 1, Type: storage.Credit, Amount: 9, Timestamp: at, Description: "y"},
	}
	rows := FromTransactions(txs)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Type: storage.Debit, Amount: 5, Time: at, Description: "x"}, rows[0])
	assert.Equal(t, int64(9), rows[1].Amount)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty statement"},
		{"bad header", "Kind,Amount,Time,Description\n", "unexpected header"},
		{"bad type", "Type,Amount,Time,Description\nrefund,1,2025-09-17T18:56:00Z,x\n", "invalid type"},
		{"bad amount", "Type,Amount,Time,Description\ncredit,1.5,2025-09-17T18:56:00Z,x\n", "failed to parse amount"},
		{"zero amount", "Type,Amount,Time,Description\ncredit,0,2025-09-17T18:56:00Z,x\n", "must be positive"},
		{"bad time", "Type,Amount,Time,Description\ncredit,1,yesterday,x\n", "failed to parse time"},
		{"short row", "Type,Amount,Time,Description\ncredit,1\n", "line 2"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(c.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestParse_HeaderCaseInsensitive(t *testing.T) {
	rows, err := Parse(strings.NewReader("type,amount,time,description\ndebit,7,2025-09-17T18:56:00Z,coffee\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, storage.Debit, rows[0].Type)
	assert.Equal(t, "coffee", rows[0].Description)
}
