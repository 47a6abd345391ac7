package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/goods-transport/internal/notify"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_consumed_total",
		Help: "Total notification events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_invalid_total",
		Help: "Total invalid events received",
	})
	emailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_emails_sent_total",
		Help: "Total emails delivered",
	})
	emailErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_email_errors_total",
		Help: "Total email deliveries that exhausted retries",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, emailsSent, emailErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "notification-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "goods-transport-notifier"
	}

	mail := notify.NewHTTPMailClient(os.Getenv("MAIL_ENDPOINT"), os.Getenv("MAIL_KEY"))

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() { _ = r.Close() }()

	log.Printf("notifier listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down notifier")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		eventsConsumed.Inc()

		var e notify.Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}
		if e.Email == "" {
			continue
		}

		if err := sendWithRetry(mail, e, 3, 200*time.Millisecond); err != nil {
			emailErrors.Inc()
			log.Printf("email delivery failed for user=%s: %v", e.UserID, err)
			continue
		}
		emailsSent.Inc()
	}
}

// Mailer is the small delivery surface we need, kept narrow for tests.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// sendWithRetry delivers one event's email with retry/backoff.
func sendWithRetry(m Mailer, e notify.Event, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = m.SendEmail(e.Email, e.Subject, e.Body); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
