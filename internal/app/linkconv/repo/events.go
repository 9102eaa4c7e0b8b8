package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repfinds.local/internal/app/linkconv/stats"
)

// AgentStat 某个代购站在一段时间内的点击和转换数
type AgentStat struct {
	Agent       string `json:"agent"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

// Summary 管理接口返回的统计
type Summary struct {
	Since    time.Time        `json:"since"`
	Agents   []AgentStat      `json:"agents"`
	Outcomes map[string]int64 `json:"outcomes"`
}

type EventsRepo struct {
	db *pgxpool.Pool
}

var _ stats.Sink = (*EventsRepo)(nil)

func NewEventsRepo(db *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{db: db}
}

const (
	insertClickSQL = `INSERT INTO agent_clicks (agent,platform,product_id,code,clicked_at,ip,user_agent,referer)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	insertConversionSQL = `INSERT INTO conversions (batch_id,input_host,source_agent,agent,marketplace,outcome,converted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
)

// InsertBatch 一个事务里写完整批，任何一条失败整批回滚
func (r *EventsRepo) InsertBatch(ctx context.Context, events []stats.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(context.Background()) //提交成功后 rollback 无效，可忽略

	b := &pgx.Batch{}
	for _, e := range events {
		switch e.Kind {
		case stats.KindClick:
			if c := e.Click; c != nil {
				b.Queue(insertClickSQL, c.Agent, c.Platform, c.ProductID, c.Code, c.ClickedAt, c.IP, c.UserAgent, c.Referer)
			}
		case stats.KindConversion:
			if c := e.Conversion; c != nil {
				b.Queue(insertConversionSQL, c.BatchID, c.InputHost, c.SourceAgent, c.Agent, c.Marketplace, c.Outcome, c.ConvertedAt)
			}
		}
	}
	if b.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// AgentSummary 统计 since 之后每个代购站的点击数和转换数，按点击数倒序
func (r *EventsRepo) AgentSummary(ctx context.Context, since time.Time) (*Summary, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.db.Query(dbctx, `
SELECT agent, SUM(clicks)::bigint, SUM(conversions)::bigint FROM (
  SELECT agent, COUNT(*) AS clicks, 0 AS conversions FROM agent_clicks WHERE clicked_at >= $1 GROUP BY agent
  UNION ALL
  SELECT agent, 0, COUNT(*) FROM conversions WHERE converted_at >= $1 AND agent <> '' GROUP BY agent
) t
GROUP BY agent
ORDER BY 2 DESC, 1`, since)
	if err != nil {
		return nil, fmt.Errorf("query agent summary: %w", err)
	}
	agents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AgentStat, error) {
		var s AgentStat
		err := row.Scan(&s.Agent, &s.Clicks, &s.Conversions)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan agent summary: %w", err)
	}

	rows, err = r.db.Query(dbctx, `SELECT outcome, COUNT(*) FROM conversions WHERE converted_at >= $1 GROUP BY outcome`, since)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()
	outcomes := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcomes: %w", err)
		}
		outcomes[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan outcomes: %w", err)
	}

	if agents == nil {
		agents = []AgentStat{}
	}
	return &Summary{Since: since, Agents: agents, Outcomes: outcomes}, nil
}
