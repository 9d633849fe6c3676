package naver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samsungBody = `{"resultCode":"success","result":{"areas":[{"name":"SERVICE_ITEM","datas":[
{"cd":"005930","nm":"삼성전자","nv":71500,"cv":500,"cr":0.7,"rf":"2","aq":12345678}]}]}}`

const fallingBody = `{"result":{"areas":[{"datas":[{"cd":"035720","nm":"카카오","nv":"48,000","cv":"1,000","cr":"2.04","rf":"5","aq":"300"}]}]}}`

const kospiBody = `{"result":{"areas":[{"datas":[{"cd":"KOSPI","nm":"코스피","nv":258345,"cv":-1255,"cr":-0.48}]}]}}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *NaverSource {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &models.MConfig{
		Network: models.MNetworkConfig{RequestTimeout: 2},
		Quote: models.MQuoteConfig{
			NaverPollingURL: srv.URL + "/api/realtime",
			NaverPopularURL: srv.URL + "/api/stocks/popular/DOMESTIC",
		},
	}
	s := NewNaverSource(cfg, network.NewAsyncNetworkManager(cfg, logger.NewNop("net")))
	s.Logger = logger.NewNop("naver")
	return s
}

func TestQuoteFormatsRise(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SERVICE_ITEM:005930", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(samsungBody))
	})

	q, err := s.Quote(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, "삼성전자", q.DisplayName)
	assert.Equal(t, "71500", q.Price.String())
	assert.Equal(t, int64(12345678), q.Volume)
	assert.Contains(t, q.Text, "📊 삼성전자 (005930)")
	assert.Contains(t, q.Text, "현재가: 71,500원")
	assert.Contains(t, q.Text, "🔺 전일대비: +500원 (+0.70%)")
	assert.Contains(t, q.Text, "거래량: 12,345,678주")
}

func TestQuoteFallingFromRiseCode(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fallingBody))
	})

	q, err := s.Quote(context.Background(), "035720")
	require.NoError(t, err)
	assert.True(t, q.Change.IsNegative())
	assert.Contains(t, q.Text, "🔻 전일대비: -1,000원 (-2.04%)")
	assert.Contains(t, q.Text, "현재가: 48,000원")
}

func TestQuoteEmptyResult(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"areas":[]}}`))
	})
	_, err := s.Quote(context.Background(), "000000")
	require.Error(t, err)
}

func TestIndexIsUnscaled(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SERVICE_INDEX:KOSPI", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(kospiBody))
	})

	idx, err := s.Index(context.Background(), "KOSPI")
	require.NoError(t, err)
	assert.InDelta(t, 2583.45, idx.Value, 0.001)
	assert.InDelta(t, -12.55, idx.Change, 0.001)
	assert.InDelta(t, -0.48, idx.ChangeRate, 0.001)
}

func TestPopularLimitsAndFormats(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
{"stockName":"삼성전자","stockCode":"005930","closePrice":"71,500","fluctuationsRatio":"0.70"},
{"stockName":"카카오","itemCode":"035720","closePrice":"48000","compareToPreviousClosePrice":"-1000"},
{"stockName":"네이버","stockCode":"035420","closePrice":"200000","fluctuationsRatio":"1.10"}]`))
	})

	list, err := s.Popular(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "71,500", list[0].ClosePrice)
	assert.Equal(t, "0.70", list[0].Change)
	assert.Equal(t, "035720", list[1].Code)
	assert.Equal(t, "-1000", list[1].Change)
}
