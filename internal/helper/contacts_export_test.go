package helper

import (
	"bytes"
	"testing"

	"gowa-gateway/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteContactsXLSX(t *testing.T) {
	t.Parallel()

	contacts := []model.Contact{
		{ID: "628111@s.whatsapp.net", Number: "628111", Name: "Alice", IsMyContact: true},
		{ID: "628222@s.whatsapp.net", Number: "628222", PushName: "bob"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteContactsXLSX(&buf, contacts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ContactsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Number", rows[0][1])
	assert.Equal(t, "Alice", rows[1][2])
	assert.Equal(t, "bob", rows[2][3])
}
