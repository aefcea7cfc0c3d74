package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type schedulerOptions struct {
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	claimTries  int
	tickTimeout time.Duration
	clock       func() time.Time
	lease       ITickLease
}

type SchedulerOption func(*schedulerOptions)

// WithSchedulerLogger 設置日誌記錄器
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		o.logger = logger
	}
}

// WithSchedulerInterval 設置掃描間隔，應小於等於可容忍的狀態轉換延遲
func WithSchedulerInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		o.interval = d
	}
}

// WithSchedulerBatchSize 設置每次掃描每種狀態最多處理的數量
func WithSchedulerBatchSize(n int) SchedulerOption {
	return func(o *schedulerOptions) {
		o.batchSize = n
	}
}

// WithSchedulerTickTimeout 設置單次掃描的逾時
func WithSchedulerTickTimeout(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		o.tickTimeout = d
	}
}

// WithSchedulerClock 設置時間來源 (主要用於測試)
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		o.clock = clock
	}
}

// WithSchedulerLease 設置掃描租約，取得租約失敗的節點會跳過該次掃描
func WithSchedulerLease(lease ITickLease) SchedulerOption {
	return func(o *schedulerOptions) {
		o.lease = lease
	}
}

// TickReport 是單次掃描的結果
type TickReport struct {
	Started int
	Ended   int
	Failed  int
}

// Scheduler 週期性地把到期的拍賣商品推進到下一個狀態
// 每次轉換都以轉換前的 revision 做條件式更新，多個排程器同時執行也只會有一個成功
type Scheduler struct {
	store      IListingStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	options    schedulerOptions

	mu         sync.Mutex
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
	closed     bool
}

func NewScheduler(store IListingStore, dispatcher *Dispatcher, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("listing store cannot be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	// 默認選項
	options := schedulerOptions{
		logger:      slog.Default(),
		interval:    time.Minute,
		batchSize:   500,
		claimTries:  3,
		tickTimeout: 5 * time.Minute,
		clock:       time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}
	if options.interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}

	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		logger:     options.logger.With(slog.String("caller", "Scheduler")),
		options:    options,
		closed:     true,
	}, nil
}

// Start 啟動週期性掃描
// 每次掃描在獨立的 goroutine 執行，執行較久的掃描不會延遲下一次掃描
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.closed = false
	s.logger.Info("starting lifecycle scheduler", slog.Duration("interval", s.options.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.Info("lifecycle scheduler stopped")
		ticker := time.NewTicker(s.options.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.runTick(ctx)
				}()
			}
		}
	}()
}

// Close 停止掃描並等待執行中的掃描結束
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelFunc()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.options.tickTimeout)
	defer cancel()

	if s.options.lease != nil {
		// 租約的 context 衍生自 acquireCtx，因此只在等待期間套用計時器
		// 等待租約的時間不超過一個掃描間隔，避免等待中的掃描堆積
		acquireCtx, cancelAcquire := context.WithCancel(tickCtx)
		defer cancelAcquire()
		timer := time.AfterFunc(s.options.interval, cancelAcquire)
		leaseCtx, release, err := s.options.lease.Acquire(acquireCtx)
		if err != nil {
			timer.Stop()
			s.logger.Debug("skip tick, lease not acquired", slog.Any("error", err))
			return
		}
		defer release()
		if !timer.Stop() {
			return
		}
		tickCtx = leaseCtx
	}
	s.Tick(tickCtx, s.options.clock())
}

// Tick 執行一次開始與結束的掃描，重複呼叫是安全的
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickReport {
	var report TickReport
	started, failed := s.sweep(ctx, StatusPending, BoundaryStart, StatusActive, now)
	report.Started, report.Failed = started, failed
	ended, failed := s.sweep(ctx, StatusActive, BoundaryEnd, StatusEnded, now)
	report.Ended, report.Failed = ended, report.Failed+failed

	if report.Started > 0 || report.Ended > 0 || report.Failed > 0 {
		s.logger.Info("tick finished",
			slog.Time("now", now),
			slog.Int("started", report.Started),
			slog.Int("ended", report.Ended),
			slog.Int("failed", report.Failed))
	}
	return report
}

// sweep 取出到期的拍賣商品並逐一推進狀態，單一商品失敗不影響其他商品
func (s *Scheduler) sweep(ctx context.Context, from Status, boundary Boundary, to Status, now time.Time) (claimed, failed int) {
	listings, err := s.store.ListDue(ctx, from, boundary, now, s.options.batchSize)
	if err != nil {
		s.logger.Error("fail to list due listings",
			slog.String("status", string(from)),
			slog.String("boundary", boundary.String()),
			slog.Any("error", err))
		return 0, 1
	}

	for _, listing := range listings {
		if ctx.Err() != nil {
			return claimed, failed
		}
		next, won, err := s.claim(ctx, listing, to, now)
		if err != nil {
			failed++
			s.logger.Error("fail to transition listing",
				slog.String("listingId", listing.ID),
				slog.String("from", string(from)),
				slog.String("to", string(to)),
				slog.Any("error", err))
			continue
		}
		if !won {
			s.logger.Debug("listing claimed elsewhere", slog.String("listingId", listing.ID))
			continue
		}
		claimed++
		switch to {
		case StatusActive:
			s.logger.Info("Auction started", slog.String("listingId", next.ID))
			s.dispatcher.Dispatch(startNotifications(next, now)...)
		case StatusEnded:
			s.logger.Info("Auction ended", slog.String("listingId", next.ID), slog.String("winnerId", next.WinnerID))
			s.dispatcher.Dispatch(endNotifications(next, now)...)
		}
	}
	return claimed, failed
}

// claim 以條件式更新取得狀態轉換的所有權
// 回傳 won=false 代表其他寫入者已完成轉換，呼叫端不應送出通知
func (s *Scheduler) claim(ctx context.Context, listing Listing, to Status, now time.Time) (Listing, bool, error) {
	const op = "Scheduler.claim"
	from := listing.Status
	for try := 0; try < s.options.claimTries; try++ {
		if listing.Status != from || !due(listing, to, now) {
			return Listing{}, false, nil
		}
		next, err := listing.Advance(to)
		if err != nil {
			return Listing{}, false, fmt.Errorf("[%s] %w", op, err)
		}
		err = s.store.ConditionalUpdate(ctx, Update{ExpectedRevision: listing.Revision, Listing: next})
		if err == nil {
			return next, true, nil
		}
		if errors.Is(err, ErrListingNotFound) {
			return Listing{}, false, nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return Listing{}, false, fmt.Errorf("[%s] Fail to update listing, err=%w", op, err)
		}
		// 其他寫入者搶先更新，重新讀取後再判斷是否仍需轉換
		listing, err = s.store.Get(ctx, listing.ID)
		if errors.Is(err, ErrListingNotFound) {
			return Listing{}, false, nil
		}
		if err != nil {
			return Listing{}, false, fmt.Errorf("[%s] Fail to reload listing, err=%w", op, err)
		}
	}
	return Listing{}, false, fmt.Errorf("[%s] %w: gave up after %d tries", op, ErrRevisionConflict, s.options.claimTries)
}

func due(listing Listing, to Status, now time.Time) bool {
	switch to {
	case StatusActive:
		return !now.Before(listing.StartTime)
	case StatusEnded:
		return !now.Before(listing.EndTime)
	}
	return false
}
