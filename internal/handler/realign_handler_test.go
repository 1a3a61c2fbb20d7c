package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestPreviewComputesPatchTuesday(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRealignHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/realign/preview?date=2020-01-03", nil)
	c.Request = req

	handler.Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "2020-01-14", body.Data["patch_tuesday"])
}

func TestPreviewRollsToNextMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRealignHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/realign/preview?date=2020-01-20", nil)
	c.Request = req

	handler.Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "2020-02-11", body.Data["patch_tuesday"])
}

func TestPreviewRejectsInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRealignHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/realign/preview?date=bad", nil)
	c.Request = req

	handler.Preview(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRunRejectsMalformedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRealignHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/realign/runs", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.TriggerRun(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestReportRequiresSiteID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRealignHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/realign/report/latest", nil)
	c.Request = req

	handler.LatestReport(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
