package mcpserver

import (
	"strings"
	"time"

	"rimcity-link/internal/wager"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultWaitTimeoutMS = 30_000
	maxWaitTimeoutMS     = 120_000
)

func normalizeBox(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "all"
	}
	return v
}

func isAllowedBox(v string) bool {
	return v == "all" || v == "incoming" || v == "outgoing"
}

// offerFromRequest reads cash/rep; negative amounts are rejected.
func offerFromRequest(request mcp.CallToolRequest) (wager.Offer, bool) {
	cash := request.GetFloat("cash", 0)
	rep := request.GetFloat("rep", 0)
	if cash < 0 || rep < 0 {
		return wager.Offer{}, false
	}
	return wager.Offer{Cash: int64(cash), Rep: int64(rep)}, true
}

func clampWaitTimeout(ms float64) time.Duration {
	if ms <= 0 {
		ms = defaultWaitTimeoutMS
	}
	if ms > maxWaitTimeoutMS {
		ms = maxWaitTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}
