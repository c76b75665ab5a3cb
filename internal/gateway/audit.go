package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/pkg/logger"
)

// startAudit 订阅事件日志并持续写入 sqlite 审计表。
// 审计是尽力而为的旁路：写入失败只记日志，绝不反压协议本身。
func (s *Server) startAudit() {
	if s.db == nil || s.journal == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, unsub := s.journal.Subscribe(1024)
	s.bgCancel = func() {
		cancel()
		unsub()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := s.auditEntry(ctx, e); err != nil {
					logger.Warnf("[gateway] 审计写入失败: %v", err)
				}
			}
		}
	}()
}

func (s *Server) auditEntry(ctx context.Context, e events.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	at := e.At.UTC().Format(time.RFC3339Nano)

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(wctx,
		`INSERT OR IGNORE INTO protocol_events (id, type, at, payload_json) VALUES (?, ?, ?, ?)`,
		e.ID, e.Type, at, string(payload)); err != nil {
		return err
	}

	switch p := e.Payload.(type) {
	case events.TransferEvent:
		_, err = s.db.ExecContext(wctx,
			`INSERT OR IGNORE INTO transfers (event_id, token, from_account, to_account, amount, at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, p.Token.Hex(), p.From.Hex(), p.To.Hex(), p.Amount.String(), at)
	case events.ControllerChangedEvent:
		_, err = s.db.ExecContext(wctx,
			`INSERT OR IGNORE INTO controller_changes (event_id, claim_token, old_controller, new_controller, at) VALUES (?, ?, ?, ?, ?)`,
			e.ID, p.ClaimToken.Hex(), p.Old.Hex(), p.New.Hex(), at)
	case events.BidPlacedEvent:
		_, err = s.db.ExecContext(wctx,
			`INSERT OR IGNORE INTO bids (event_id, lot_id, bidder, amount, at) VALUES (?, ?, ?, ?, ?)`,
			e.ID, p.LotID, p.Bidder.Hex(), p.Amount.String(), at)
	case events.LotSettledEvent:
		_, err = s.db.ExecContext(wctx,
			`INSERT OR IGNORE INTO settlements (event_id, lot_id, account, role, at) VALUES (?, ?, ?, ?, ?)`,
			e.ID, p.LotID, p.Party.Hex(), p.Role, at)
	}
	return err
}
