package redis

import "github.com/redis/go-redis/v9"

// ConditionalUpdateScript 以 revision 做樂觀鎖更新拍賣商品
//
//	KEYS[1] - 拍賣商品 hash
//	KEYS[2] - 等待開始的 sorted set (pending, score 為 startTime)
//	KEYS[3] - 等待結束的 sorted set (active, score 為 endTime)
//	KEYS[4] - 該商品的出價帳本 stream
//	KEYS[5] - 全域出價 stream
//	ARGV[1] - 預期的 revision
//	ARGV[2] - 拍賣商品 ID
//	ARGV[3] - 更新後的狀態
//	ARGV[4] - startTime (unix ms)
//	ARGV[5] - endTime (unix ms)
//	ARGV[6] - 出價資料，空字串代表沒有出價
//	ARGV[7...] - hash 的 field/value
//
// 返回值:
//
//	1  - 更新成功
//	0  - revision 不符
//	-1 - 拍賣商品不存在
//
// 流程:
//   - 1. 檢查商品是否存在
//   - 2. 檢查 revision 是否相符
//   - 3. 如果有出價，寫入帳本與全域 stream
//   - 4. 更新 hash
//   - 5. 依新狀態維護到期索引
var ConditionalUpdateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end

local revision = tonumber(redis.call('HGET', KEYS[1], 'revision'))
if revision ~= tonumber(ARGV[1]) then
    return 0
end

if ARGV[6] ~= '' then
    redis.call('XADD', KEYS[4], '*', 'data', ARGV[6])
    redis.call('XADD', KEYS[5], '*', 'data', ARGV[6])
end

redis.call('HSET', KEYS[1], unpack(ARGV, 7))

redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('ZREM', KEYS[3], ARGV[2])
if ARGV[3] == 'pending' then
    redis.call('ZADD', KEYS[2], ARGV[4], ARGV[2])
elseif ARGV[3] == 'active' then
    redis.call('ZADD', KEYS[3], ARGV[5], ARGV[2])
end

return 1
`)

// CreateScript 建立拍賣商品，已存在時不做任何修改
//
//	KEYS[1] - 拍賣商品 hash
//	KEYS[2] - 等待開始的 sorted set
//	KEYS[3] - 等待結束的 sorted set
//	ARGV[1] - 拍賣商品 ID
//	ARGV[2] - 狀態
//	ARGV[3] - startTime (unix ms)
//	ARGV[4] - endTime (unix ms)
//	ARGV[5...] - hash 的 field/value
//
// 返回值:
//
//	1 - 建立成功
//	0 - 已存在
var CreateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end

redis.call('HSET', KEYS[1], unpack(ARGV, 5))

if ARGV[2] == 'pending' then
    redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
elseif ARGV[2] == 'active' then
    redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
end

return 1
`)
