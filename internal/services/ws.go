package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

var ErrSocketDown = errors.New("socket not connected")

const (
	reconnectDelay = 5 * time.Second
	writeTimeout   = 10 * time.Second
)

// Inbound receives decoded socket events.
type Inbound interface {
	HandlePrintJob(ctx context.Context, raw json.RawMessage)
	HandleJobUpdate(ctx context.Context, update model.JobUpdate)
}

// --- WebSocket Agent Logic ---

// SocketClient owns the real-time connection to the order server.
type SocketClient struct {
	url     string
	apiKey  string
	inbound Inbound
	device  func() model.RegisterDevice
	log     *logger.Logger
	retry   time.Duration

	mu        sync.Mutex // serializes writes
	conn      *websocket.Conn
	onConnect []func()

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSocketClient(url, apiKey string, inbound Inbound, device func() model.RegisterDevice, log *logger.Logger) *SocketClient {
	return &SocketClient{
		url:     url,
		apiKey:  apiKey,
		inbound: inbound,
		device:  device,
		log:     log.With("socket"),
		retry:   reconnectDelay,
	}
}

// OnConnect registers fn to run after every successful (re)connect.
func (s *SocketClient) OnConnect(fn func()) {
	s.onConnect = append(s.onConnect, fn)
}

// Start connects in the background and keeps reconnecting until Stop.
func (s *SocketClient) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		defer s.log.RecoverPanic()
		s.run(ctx)
	}()
}

// Stop disconnects and waits for the read loop to exit.
func (s *SocketClient) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *SocketClient) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *SocketClient) run(ctx context.Context) {
	header := http.Header{}
	if s.apiKey != "" {
		header.Add("X-Api-Key", s.apiKey)
	}

	s.log.Info("Connecting to WebSocket...", s.url)
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warning(fmt.Sprintf("Connection failed. Retrying in %s", s.retry), err.Error())
		} else {
			s.log.Info("Connected.")
			s.handleConnection(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			s.log.Warning(fmt.Sprintf("Disconnected. Reconnecting in %s", s.retry))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *SocketClient) handleConnection(ctx context.Context, conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	if err := s.Register(); err != nil {
		s.log.Error("Failed to send register_device", err)
		return
	}
	for _, fn := range s.onConnect {
		go fn()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warning("Read error", err.Error())
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warning("Unreadable message", err.Error())
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *SocketClient) dispatch(ctx context.Context, env model.Envelope) {
	switch env.Event {
	case model.EventPrintJob:
		s.log.Info("Received print job...")
		s.inbound.HandlePrintJob(ctx, env.Data)

	case model.EventJobUpdate:
		var update model.JobUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			s.log.Warning("Bad job_update", err.Error())
			return
		}
		s.inbound.HandleJobUpdate(ctx, update)

	case model.EventPing:
		if err := s.Send(model.EventPong, nil); err != nil {
			s.log.Warning("Failed to send pong", err.Error())
		}

	default:
		s.log.Info("Unknown event", string(env.Event))
	}
}

// Send writes one event envelope.
func (s *SocketClient) Send(event model.EventType, data interface{}) error {
	env := model.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrSocketDown
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Register announces the device and its printer state.
func (s *SocketClient) Register() error {
	return s.Send(model.EventRegisterDevice, s.device())
}

// Acknowledge sends print_acknowledged.
func (s *SocketClient) Acknowledge(_ context.Context, ack model.PrintAck) error {
	return s.Send(model.EventPrintAck, ack)
}
