package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"divscan-go/internal/model"
)

type BinanceService struct {
	baseURL string
	client  *http.Client
}

func NewBinanceService(baseURL string) *BinanceService {
	return &BinanceService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// KlineResponse represents Binance API response for klines
type KlineResponse []interface{}

// GetKlines fetches candlestick data from Binance, oldest first
func (s *BinanceService) GetKlines(symbol, interval string, limit int) ([]model.Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", s.baseURL, q.Encode())

	log.Printf("🌐 [Binance API] Fetching %s klines (%s, limit: %d)...", symbol, interval, limit)
	resp, err := s.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance API error: %s - %s", resp.Status, string(body))
	}

	var klineData []KlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&klineData); err != nil {
		return nil, fmt.Errorf("failed to decode klines: %w", err)
	}

	klines := make([]model.Kline, 0, len(klineData))
	for idx, k := range klineData {
		kline, err := parseKline(k)
		if err != nil {
			log.Printf("⚠️  [Binance API] Skipping kline at index %d: %v", idx, err)
			continue
		}
		klines = append(klines, kline)
	}

	if len(klines) == 0 {
		return nil, fmt.Errorf("no valid klines after parsing")
	}

	log.Printf("✅ [Binance API] Successfully fetched %d %s klines for %s", len(klines), interval, symbol)
	return klines, nil
}

func parseKline(k KlineResponse) (model.Kline, error) {
	if len(k) < 7 {
		return model.Kline{}, fmt.Errorf("insufficient fields (%d/7)", len(k))
	}

	openTime := SafeTypeAssertFloat(k[0], 0)
	closeTime := SafeTypeAssertFloat(k[6], 0)

	var values [5]float64
	for i := range values {
		v, err := strconv.ParseFloat(SafeTypeAssertString(k[i+1], "0"), 64)
		if err != nil {
			return model.Kline{}, fmt.Errorf("parse field %d: %w", i+1, err)
		}
		values[i] = v
	}
	open, high, low, closePrice, volume := values[0], values[1], values[2], values[3], values[4]

	if !ValidatePrice(open) || !ValidatePrice(high) || !ValidatePrice(low) || !ValidatePrice(closePrice) {
		return model.Kline{}, fmt.Errorf("invalid price values")
	}

	// High >= Low, High >= Open/Close, Low <= Open/Close
	if high < low || high < open || high < closePrice || low > open || low > closePrice {
		return model.Kline{}, fmt.Errorf("invalid OHLC relationship")
	}

	return model.Kline{
		OpenTime:  int64(openTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: int64(closeTime),
	}, nil
}
