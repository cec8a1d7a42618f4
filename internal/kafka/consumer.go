package kafka

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches until ctx is cancelled; messages are committed only after h succeeds.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					log.Error().Err(err).Int("worker", id).Str("topic", m.Topic).
						Int64("offset", m.Offset).Msg("handler failed, offset not committed")
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Error().Err(err).Int("worker", id).Int64("offset", m.Offset).Msg("commit failed")
				}
			}
		}(i)
	}

	// dispatcher loop
	err := func() error {
		for {
			m, err := c.r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case jobs <- m:
			case <-ctx.Done():
				return nil
			}
		}
	}()

	close(jobs)
	wg.Wait()
	return err
}
