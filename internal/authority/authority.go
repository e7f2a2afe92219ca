// Package authority provides a local development signature authority. It
// speaks the same one-request-per-session JSON protocol as the production
// validator, so the node can run end to end without it. Signatures are not
// cryptographic proofs; they only carry the expected prefix.
package authority

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xyron.node/xyn/internal/bridge"
	"xyron.node/xyn/internal/logger"
)

// SignFunc produces the response for one request.
type SignFunc func(req bridge.Request) bridge.Response

// Server accepts authority sessions on a unix or tcp listener.
type Server struct {
	network string
	address string
	sign    SignFunc
	logger  *logger.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer creates a Server that signs with prefix.
func NewServer(network, address, prefix string, l *logger.Logger) *Server {
	if l == nil {
		l = logger.New(16, nil)
	}
	return &Server{
		network: network,
		address: address,
		sign:    Signer(prefix),
		logger:  l,
	}
}

// WithSigner replaces the signing function.
func (s *Server) WithSigner(fn SignFunc) *Server {
	s.sign = fn
	return s
}

// Listen binds the listener. A stale unix socket file is removed first.
func (s *Server) Listen() error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", s.network, s.address, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Infof("Listening on %s %s", s.network, ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve accepts sessions until ctx is done or the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("authority: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Errorf("Accept failed: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Close stops the listener and waits for open sessions.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	if s.network == "unix" {
		os.Remove(s.address)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req bridge.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warningf("Bad request: %v", err)
		return
	}
	resp := s.sign(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warningf("Write response %s: %v", req.RequestID, err)
	}
}

// Signer returns the default SignFunc. Signatures have the form
// <prefix><SMS|VAL>_<participant>_<unix seconds>_<hex> and the message is
// returned base64-encoded under data.sms_encrypted.
func Signer(prefix string) SignFunc {
	return func(req bridge.Request) bridge.Response {
		now := time.Now()
		if strings.TrimSpace(req.ParticipantID) == "" {
			return bridge.Response{Status: "rejected", Message: "missing wallet_id", Timestamp: now.Unix()}
		}

		flag := "VAL"
		if req.Message != "" {
			flag = "SMS"
		}
		sum := sha256.Sum256([]byte(req.ParticipantID + "|" + req.RequestID + "|" + req.Message))
		nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
		sig := fmt.Sprintf("%s%s_%s_%d_%s%s", prefix, flag, req.ParticipantID, now.Unix(), hex.EncodeToString(sum[:4]), nonce[:8])

		data, _ := json.Marshal(map[string]string{
			"tx_id":         req.RequestID,
			"sms_encrypted": base64.StdEncoding.EncodeToString([]byte(req.Message)),
		})
		return bridge.Response{
			Status:    "verified",
			Message:   "PIP",
			Verified:  true,
			Signature: sig,
			Data:      data,
			Timestamp: now.Unix(),
		}
	}
}
