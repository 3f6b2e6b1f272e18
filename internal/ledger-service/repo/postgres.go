package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/polybets/polybet-ledger/internal/ledger-service/core"
)

// Postgres implementa o journal de auditoria do ledger e a recuperação
// de estado no boot. Nada é deletado: slips, pernas e lançamentos de
// saldo ficam como trilha permanente.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório do ledger.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas quando ainda não existem (ambiente
// local/dev; em prod o schema é gerido por migração).
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS bet_slips (
		id                TEXT PRIMARY KEY,
		owner_identity    TEXT NOT NULL,
		strategy          TEXT NOT NULL,
		private           BOOLEAN NOT NULL DEFAULT FALSE,
		total_collateral  BIGINT NOT NULL,
		final_collateral  BIGINT NOT NULL DEFAULT 0,
		expected_legs     INT NOT NULL,
		leg_specs         JSONB NOT NULL,
		status            TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS proxied_bets (
		id                  TEXT PRIMARY KEY,
		bet_slip_id         TEXT NOT NULL REFERENCES bet_slips(id),
		marketplace_id      TEXT NOT NULL,
		market_id           TEXT NOT NULL,
		option_index        INT NOT NULL,
		minimum_shares      BIGINT NOT NULL,
		block_timestamp     BIGINT NOT NULL,
		original_collateral BIGINT NOT NULL,
		final_collateral    BIGINT NOT NULL DEFAULT 0,
		shares_bought       BIGINT NOT NULL,
		shares_sold         BIGINT NOT NULL DEFAULT 0,
		outcome             TEXT NOT NULL,
		failure_reason      TEXT NOT NULL DEFAULT '',
		credited            BOOLEAN NOT NULL DEFAULT FALSE,
		recorded_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS balance_ledger (
		id            TEXT PRIMARY KEY,
		identity      TEXT NOT NULL,
		kind          TEXT NOT NULL,
		amount        BIGINT NOT NULL,
		reference     TEXT NOT NULL,
		balance_after BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS user_balances (
		identity   TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	_, err := p.db.ExecContext(ctx, ddl)
	return err
}

// Append grava o changeset inteiro numa transação. Implementa
// core.Journal; o engine só publica o estado novo se isto commitar.
func (p *Postgres) Append(ctx context.Context, ch core.Changeset) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if ch.Slip != nil {
		specs, err := json.Marshal(ch.Slip.LegSpecs)
		if err != nil {
			return fmt.Errorf("marshal leg specs: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_slips
			  (id, owner_identity, strategy, private, total_collateral, final_collateral, expected_legs, leg_specs, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET
			  final_collateral = EXCLUDED.final_collateral,
			  status           = EXCLUDED.status,
			  updated_at       = NOW()`,
			ch.Slip.ID, ch.Slip.OwnerIdentity, string(ch.Slip.Strategy), ch.Slip.Private,
			ch.Slip.TotalCollateralAmount, ch.Slip.FinalCollateral, ch.Slip.ExpectedLegs,
			specs, string(ch.Slip.Status), ch.Slip.CreatedAt,
		); err != nil {
			return err
		}
	}

	if ch.Leg != nil {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO proxied_bets
			  (id, bet_slip_id, marketplace_id, market_id, option_index, minimum_shares, block_timestamp,
			   original_collateral, final_collateral, shares_bought, shares_sold, outcome, failure_reason, credited)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (id) DO UPDATE SET
			  final_collateral = EXCLUDED.final_collateral,
			  shares_sold      = EXCLUDED.shares_sold,
			  outcome          = EXCLUDED.outcome,
			  failure_reason   = EXCLUDED.failure_reason,
			  credited         = EXCLUDED.credited,
			  updated_at       = NOW()`,
			ch.Leg.ID, ch.Leg.BetSlipID, ch.Leg.MarketplaceID, ch.Leg.MarketID,
			ch.Leg.OptionIndex, ch.Leg.MinimumShares, ch.Leg.BlockTimestamp,
			ch.Leg.OriginalCollateralAmount, ch.Leg.FinalCollateralAmount,
			ch.Leg.SharesBought, ch.Leg.SharesSold, string(ch.Leg.Outcome),
			ch.Leg.FailureReason, ch.Leg.Credited,
		); err != nil {
			return err
		}
	}

	for _, en := range ch.Entries {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO balance_ledger (id, identity, kind, amount, reference, balance_after, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			en.ID, en.Identity, en.Kind, en.Amount, en.Reference, en.Balance, en.CreatedAt,
		); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO user_balances (identity, balance) VALUES ($1,$2)
			ON CONFLICT (identity) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`,
			en.Identity, en.Balance,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadState lê o estado completo para repovoar o engine no boot.
// As pernas vêm na ordem de gravação (o engine reconstrói LegIDs dela).
func (p *Postgres) LoadState(ctx context.Context) ([]core.BetSlip, []core.ProxiedBet, map[string]int64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_identity, strategy, private, total_collateral, final_collateral,
		       expected_legs, leg_specs, status, created_at
		FROM bet_slips ORDER BY created_at, id`)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	var slips []core.BetSlip
	for rows.Next() {
		var s core.BetSlip
		var strategy, status string
		var specs []byte
		if err := rows.Scan(&s.ID, &s.OwnerIdentity, &strategy, &s.Private,
			&s.TotalCollateralAmount, &s.FinalCollateral, &s.ExpectedLegs,
			&specs, &status, &s.CreatedAt); err != nil {
			return nil, nil, nil, err
		}
		s.Strategy = core.Strategy(strategy)
		s.Status = core.SlipStatus(status)
		if err := json.Unmarshal(specs, &s.LegSpecs); err != nil {
			return nil, nil, nil, fmt.Errorf("unmarshal leg specs of %s: %w", s.ID, err)
		}
		slips = append(slips, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}

	lrows, err := p.db.QueryContext(ctx, `
		SELECT id, bet_slip_id, marketplace_id, market_id, option_index, minimum_shares, block_timestamp,
		       original_collateral, final_collateral, shares_bought, shares_sold, outcome, failure_reason, credited
		FROM proxied_bets ORDER BY recorded_at, id`)
	if err != nil {
		return nil, nil, nil, err
	}
	defer lrows.Close()

	var legs []core.ProxiedBet
	for lrows.Next() {
		var l core.ProxiedBet
		var outcome string
		if err := lrows.Scan(&l.ID, &l.BetSlipID, &l.MarketplaceID, &l.MarketID,
			&l.OptionIndex, &l.MinimumShares, &l.BlockTimestamp,
			&l.OriginalCollateralAmount, &l.FinalCollateralAmount,
			&l.SharesBought, &l.SharesSold, &outcome, &l.FailureReason, &l.Credited); err != nil {
			return nil, nil, nil, err
		}
		l.Outcome = core.Outcome(outcome)
		legs = append(legs, l)
	}
	if err := lrows.Err(); err != nil {
		return nil, nil, nil, err
	}

	brows, err := p.db.QueryContext(ctx, `SELECT identity, balance FROM user_balances`)
	if err != nil {
		return nil, nil, nil, err
	}
	defer brows.Close()

	balances := make(map[string]int64)
	for brows.Next() {
		var identity string
		var bal int64
		if err := brows.Scan(&identity, &bal); err != nil {
			return nil, nil, nil, err
		}
		balances[identity] = bal
	}
	return slips, legs, balances, brows.Err()
}
