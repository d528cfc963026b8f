package report

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuild(t *testing.T) {
	f, err := Build("Contracts", []Column{{Header: "Reference"}, {Header: "Amount", Width: 12}}, [][]any{
		{"CTR-001", 1500.5},
		{"CTR-002", 20.0},
	})
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Contracts", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Reference", header)

	ref, err := f.GetCellValue("Contracts", "A3")
	require.NoError(t, err)
	assert.Equal(t, "CTR-002", ref)

	rows, err := f.GetRows("Contracts")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/contracts/export", nil)

	f, err := Build("Contracts", []Column{{Header: "Reference"}}, nil)
	require.NoError(t, err)
	require.NoError(t, Send(c, "contrats.xlsx", f))

	assert.Equal(t, ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "contrats.xlsx")

	opened, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer opened.Close()
	assert.Equal(t, []string{"Contracts"}, opened.GetSheetList())
}
