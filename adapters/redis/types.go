package redis

// Keys 定義了拍賣資料在 Redis 中的 key 配置
type Keys struct {
	Prefix string
}

// Listing 拍賣商品 hash
func (k Keys) Listing(id string) string {
	return k.Prefix + "listing:" + id
}

// Ledger 拍賣商品的出價帳本 stream
func (k Keys) Ledger(id string) string {
	return k.Prefix + "listing:" + id + ":bids"
}

// DueStart 等待開始的 pending 拍賣商品索引
func (k Keys) DueStart() string {
	return k.Prefix + "due:start"
}

// DueEnd 等待結束的 active 拍賣商品索引
func (k Keys) DueEnd() string {
	return k.Prefix + "due:end"
}

// Bids 所有拍賣商品共用的出價 stream
func (k Keys) Bids() string {
	return k.Prefix + "bids"
}

// Notifications 通知 stream
func (k Keys) Notifications() string {
	return k.Prefix + "notifications"
}
