package database

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"papertrader/src/utils/errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// TradesChannel carries "<portfolio id>;<trade json>" for every archived trade.
const TradesChannel = "archived_trades"

// AllObjects subscribes to every object on a channel.
const AllObjects = "*"

type NotificationManager struct {
	db          *gorm.DB
	listener    *pq.Listener
	subscribers map[string]map[string]map[string]chan<- string
	mu          sync.RWMutex
}

func NewNotificationManager(db *gorm.DB) (*NotificationManager, error) {
	dialector, ok := db.Config.Dialector.(*postgres.Dialector)
	if !ok {
		return nil, errors.New("notifications need a postgres dialector")
	}
	connStr := dialector.DSN
	listener := pq.NewListener(connStr, 10*time.Second, time.Minute, nil)

	nm := &NotificationManager{
		db:          db,
		listener:    listener,
		subscribers: make(map[string]map[string]map[string]chan<- string), // channel -> objectID -> subscriberID -> chan
	}

	go nm.listen()

	return nm, nil
}

func (nm *NotificationManager) listen() {
	for notification := range nm.listener.Notify {
		if notification == nil {
			continue
		}
		nm.handleNotification(notification.Channel, notification.Extra)
	}
}

func (nm *NotificationManager) handleNotification(channel, payload string) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	objectId, msg, ok := strings.Cut(payload, ";")
	if !ok {
		slog.Error("Invalid payload format", "payload", payload)

		return
	}

	subs, ok := nm.subscribers[channel]
	if !ok {
		return
	}
	for _, key := range []string{objectId, AllObjects} {
		for _, ch := range subs[key] {
			select {
			case ch <- msg:
				slog.Debug("Notification sent", "channel", channel, "objectID", objectId)
			default:
				slog.Warn("Notification channel is full, skipping", "channel", channel)
			}
		}
	}
}

func (nm *NotificationManager) Subscribe(ctx context.Context, subscriberID string, objectType string, objectID string) (<-chan string, error) {
	channel := objectType
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if _, ok := nm.subscribers[channel]; !ok {
		if nm.listener != nil {
			if err := nm.listener.Listen(channel); err != nil {
				return nil, errors.Wrapf(err, "failed to listen on channel %s", channel)
			}
		}
		nm.subscribers[channel] = make(map[string]map[string]chan<- string)
	}

	if nm.subscribers[channel][objectID] == nil {
		nm.subscribers[channel][objectID] = make(map[string]chan<- string)
	}

	ch := make(chan string, 10)
	nm.subscribers[channel][objectID][subscriberID] = ch

	slog.Info("Subscribed to channel", "channel", channel, "objectID", objectID, "subscriberID", subscriberID)
	return ch, nil
}

func (nm *NotificationManager) NewSubscriber(ctx context.Context) string {
	return uuid.New().String()
}

func (nm *NotificationManager) Unsubscribe(objectType string, subscriberID string, objectIDs ...string) error {
	channel := objectType

	nm.mu.Lock()
	defer nm.mu.Unlock()

	subs, ok := nm.subscribers[channel]
	if !ok {
		return errors.Newf("no subscribers for channel %s", channel)
	}

	for _, objectID := range objectIDs {
		if objSubs, ok := subs[objectID]; ok {
			if ch, exists := objSubs[subscriberID]; exists {
				close(ch)
				delete(objSubs, subscriberID)
			}

			if len(objSubs) == 0 {
				delete(subs, objectID)
			}
		}
	}

	if len(subs) == 0 {
		delete(nm.subscribers, channel)
		if nm.listener != nil {
			if err := nm.listener.Unlisten(channel); err != nil {
				return errors.Wrapf(err, "failed to unlisten on channel %s", channel)
			}
		}
	}

	return nil
}

func (nm *NotificationManager) Close() error {
	nm.listener.UnlistenAll()

	return nm.listener.Close()
}

func Notify(db *gorm.DB, objectType string, objectID string, payload string) error {
	channel := objectType
	msg := objectID + ";" + payload

	if err := db.Exec("SELECT pg_notify(?, ?)", channel, msg).Error; err != nil {
		return errors.Wrapf(err, "failed to send notification")
	}

	return nil
}

// SubscribeTrades merges archived-trade notifications for the given
// portfolios, or for all portfolios when none are named. The returned func
// unsubscribes.
func (d *databaseImplementation) SubscribeTrades(ctx context.Context, portfolioIDs ...string) (<-chan string, func(), error) {
	nm := d.notificationManager
	if len(portfolioIDs) == 0 {
		portfolioIDs = []string{AllObjects}
	}
	subscriberID := nm.NewSubscriber(ctx)
	channels := make([]<-chan string, 0, len(portfolioIDs))
	for _, id := range portfolioIDs {
		ch, err := nm.Subscribe(ctx, subscriberID, TradesChannel, id)
		if err != nil {
			nm.Unsubscribe(TradesChannel, subscriberID, portfolioIDs...) //nolint:errcheck
			return nil, nil, err
		}
		channels = append(channels, ch)
	}
	cancel := func() {
		if err := nm.Unsubscribe(TradesChannel, subscriberID, portfolioIDs...); err != nil {
			slog.Warn("Unsubscribe failed", "error", err)
		}
	}
	return FanIn(ctx, channels...), cancel, nil
}

func FanIn(ctx context.Context, channels ...<-chan string) <-chan string {
	out := make(chan string) // Output channel
	var wg sync.WaitGroup

	for _, ch := range channels {
		if ch == nil { // Skip nil channels
			continue
		}
		wg.Add(1)
		go func(c <-chan string) {
			defer wg.Done()
			for {
				select {
				case n, ok := <-c:
					if !ok {
						return
					}
					select {
					case out <- n:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
