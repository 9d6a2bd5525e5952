// Package digest по расписанию отправляет главному администратору сводку
// неподтверждённых заказов и недоставленных пробных периодов.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/redemption"
)

// maxLines сколько строк каждого списка попадает в текст сводки.
const maxLines = 20

// OrderLister источник неподтверждённых заказов.
type OrderLister interface {
	ListPending(ctx context.Context) ([]models.Order, error)
}

// PendingLister источник недоставленных записей журнала.
type PendingLister interface {
	Pending(ctx context.Context) ([]models.LogEntry, error)
}

// Notifier отправляет уведомление.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Service собирает и отправляет сводку.
type Service struct {
	orders   OrderLister
	activity PendingLister
	notifier Notifier
	rootID   int64
	parser   cron.Parser
	log      *slog.Logger
}

// NewService создаёт Service.
func NewService(orders OrderLister, activity PendingLister, notifier Notifier, rootID int64, log *slog.Logger) *Service {
	return &Service{
		orders:   orders,
		activity: activity,
		notifier: notifier,
		rootID:   rootID,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		log:      log,
	}
}

// RunOnce собирает сводку и отправляет её. Если ждать нечего, ничего не отправляет
// и возвращает false.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	const op = "services.digest.RunOnce"

	orders, err := s.orders.ListPending(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	pending, err := s.activity.Pending(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	pending = deliverable(pending)
	if len(orders) == 0 && len(pending) == 0 {
		s.log.Info("digest skipped, nothing pending")
		return false, nil
	}

	n := models.Notification{
		ID:          uuid.New().String(),
		Kind:        models.NotifyPendingDigest,
		RecipientID: s.rootID,
		Text:        render(orders, pending),
		Fields: map[string]string{
			"pending_orders":     strconv.Itoa(len(orders)),
			"pending_deliveries": strconv.Itoa(len(pending)),
		},
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("digest sent",
		slog.Int("pending_orders", len(orders)),
		slog.Int("pending_deliveries", len(pending)))
	return true, nil
}

// deliverable отбрасывает пробные периоды администраторов: их доставку никто не подтверждает.
func deliverable(entries []models.LogEntry) []models.LogEntry {
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == models.LogFreeTrial && e.Detail == redemption.UnlimitedDetail {
			continue
		}
		out = append(out, e)
	}
	return out
}

func render(orders []models.Order, pending []models.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pedidos aguardando pagamento: %d\n", len(orders))
	for i, o := range orders {
		if i == maxLines {
			fmt.Fprintf(&b, "... +%d\n", len(orders)-maxLines)
			break
		}
		fmt.Fprintf(&b, "- %s @%s %s %s\n", o.ID, o.Handle, o.TierLabel, o.PriceLabel)
	}
	fmt.Fprintf(&b, "Entregas pendentes: %d\n", len(pending))
	for i, e := range pending {
		if i == maxLines {
			fmt.Fprintf(&b, "... +%d\n", len(pending)-maxLines)
			break
		}
		fmt.Fprintf(&b, "- %d @%s %s\n", e.UserID, e.Handle, e.GameID)
	}
	return b.String()
}

// Start запускает отправку сводки по cron-выражению schedule.
// Возвращённая функция останавливает планировщик и ждёт текущий запуск.
func (s *Service) Start(ctx context.Context, schedule string) (stop func(), err error) {
	const op = "services.digest.Start"

	sched, err := s.parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", op, schedule, err)
	}

	c := cron.New(cron.WithParser(s.parser))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("digest failed", sl.Err(err))
		}
	}))
	c.Start()
	s.log.Info("digest scheduled", slog.String("schedule", schedule))

	return func() {
		<-c.Stop().Done()
	}, nil
}
