package stats

import (
	"strings"
	"time"

	"repfinds.local/internal/app/linkconv"
)

type Kind string

const (
	KindClick      Kind = "click"
	KindConversion Kind = "conversion"
)

// ClickEvent 短代购链接被打开一次
type ClickEvent struct {
	Agent     string    `json:"agent"`
	Platform  string    `json:"platform"`
	ProductID string    `json:"productId"`
	Code      string    `json:"code,omitempty"` // 请求里带的邀请码，没有为空
	ClickedAt time.Time `json:"clickedAt"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Referer   string    `json:"referer"`
}

// ConversionEvent 一次链接转换
type ConversionEvent struct {
	BatchID     string    `json:"batchId,omitempty"`
	InputHost   string    `json:"inputHost"`
	SourceAgent string    `json:"sourceAgent,omitempty"` // 输入链接所属的代购站
	Agent       string    `json:"agent,omitempty"`       // 请求要生成的代购站
	Marketplace string    `json:"marketplace,omitempty"`
	Outcome     string    `json:"outcome"`
	ConvertedAt time.Time `json:"convertedAt"`
}

// Event 是队列里传递的信封，Kind 决定哪个字段有值
type Event struct {
	Kind       Kind             `json:"kind"`
	Click      *ClickEvent      `json:"click,omitempty"`
	Conversion *ConversionEvent `json:"conversion,omitempty"`
}

func Click(e ClickEvent) Event {
	return Event{Kind: KindClick, Click: &e}
}

func Conversion(e ConversionEvent) Event {
	return Event{Kind: KindConversion, Conversion: &e}
}

// Valid 信封里的 Kind 和负载对得上
func (e Event) Valid() bool {
	switch e.Kind {
	case KindClick:
		return e.Click != nil
	case KindConversion:
		return e.Conversion != nil
	}
	return false
}

// ConversionOf 从一次转换结果生成事件
func ConversionOf(input, agent, batchID string, res linkconv.ConversionResult, at time.Time) Event {
	e := ConversionEvent{
		BatchID:     batchID,
		InputHost:   linkconv.HostOf(linkconv.SanitizeInput(input)),
		Agent:       strings.ToLower(strings.TrimSpace(agent)),
		Marketplace: string(res.Marketplace),
		Outcome:     res.Outcome(),
		ConvertedAt: at,
	}
	if res.IsAgent {
		e.SourceAgent = res.AgentName
	}
	return Conversion(e)
}
