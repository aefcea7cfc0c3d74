package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"vendue/auction"
)

// stream 消息的欄位
const (
	fieldPayload = "data"
	fieldError   = "error"
)

var (
	ErrPointerType = errors.New("pointer type is not allowed")
)

// 消息內容以 msgpack 編碼後再轉 base64，放在 data 欄位
// 死信 stream 會額外帶上 error 欄位

func encodePayload(v any) (string, error) {
	bytes, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("msgpack marshal error: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

func decodePayload(message map[string]any, v any) error {
	encoded, ok := message[fieldPayload].(string)
	if !ok {
		return errors.New("data field not found or invalid type")
	}
	bytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(bytes, v); err != nil {
		return fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return nil
}

// DefaultParseToMessage 是 Producer 預設的編碼方式，通知直接以此寫入 stream
func DefaultParseToMessage[T any](data T) (map[string]any, error) {
	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		return nil, ErrPointerType
	}
	encoded, err := encodePayload(data)
	if err != nil {
		return nil, err
	}
	return map[string]any{fieldPayload: encoded}, nil
}

// DefaultParseFromMessage 是 Consumer 與 GroupConsumer 預設的解碼方式
// 空消息回傳零值
func DefaultParseFromMessage[T any](message map[string]any) (T, error) {
	var result T
	if reflect.TypeOf(result).Kind() == reflect.Ptr {
		return result, ErrPointerType
	}
	if len(message) == 0 {
		return result, nil
	}
	err := decodePayload(message, &result)
	return result, err
}

// BidRecord 是出價寫入 stream 時的格式
// 金額以字串保存，避免精度在編碼時流失
type BidRecord struct {
	ID         string `msgpack:"id"`
	ListingID  string `msgpack:"listing_id"`
	BidderID   string `msgpack:"bidder_id"`
	Amount     string `msgpack:"amount"`
	AcceptedAt int64  `msgpack:"accepted_at"` // unix nano
}

func NewBidRecord(bid auction.Bid) BidRecord {
	return BidRecord{
		ID:         bid.ID,
		ListingID:  bid.ListingID,
		BidderID:   bid.BidderID,
		Amount:     bid.Amount.String(),
		AcceptedAt: bid.AcceptedAt.UnixNano(),
	}
}

// Bid 轉換回 auction.Bid
func (r BidRecord) Bid() (auction.Bid, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return auction.Bid{}, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}
	return auction.Bid{
		ID:         r.ID,
		ListingID:  r.ListingID,
		BidderID:   r.BidderID,
		Amount:     amount,
		AcceptedAt: time.Unix(0, r.AcceptedAt).UTC(),
	}, nil
}

// BidToMessage 將出價編碼成帳本與出價 stream 的消息
func BidToMessage(bid auction.Bid) (map[string]any, error) {
	return DefaultParseToMessage(NewBidRecord(bid))
}

// BidFromMessage 解碼帳本與出價 stream 的消息，作為出價 GroupConsumer 的解析函數
func BidFromMessage(message map[string]any) (auction.Bid, error) {
	var record BidRecord
	if err := decodePayload(message, &record); err != nil {
		return auction.Bid{}, err
	}
	return record.Bid()
}
