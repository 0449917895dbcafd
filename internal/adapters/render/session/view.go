package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/charmbracelet/lipgloss"
)

func renderSnapshot(snapshot domain.Snapshot, catalog domain.ChainCatalog, s styles) string {
	lines := []string{
		s.title.Render("Wallet Session"),
		field("state:", stateStyle(snapshot.State, s).Render(string(snapshot.State)), s),
	}

	if snapshot.Account == nil {
		lines = append(lines, s.empty.Render("No wallet connected."))
	} else {
		lines = append(lines, field("account:", s.account.Render(snapshot.Account.Hex()), s))
	}

	lines = append(lines, field("network:", s.value.Render(networkLabel(snapshot.ChainID, catalog)), s))

	if snapshot.Account != nil {
		lines = append(lines, field("balance:", balanceLabel(snapshot, catalog, s), s))
	}

	if len(snapshot.Pending) > 0 {
		pending := make([]string, 0, len(snapshot.Pending))
		for _, kind := range snapshot.Pending {
			pending = append(pending, string(kind))
		}
		lines = append(lines, s.pending.Render("pending: "+strings.Join(pending, ", ")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(details domain.AccountDetails, s styles) string {
	lines := []string{s.title.Render("Wallet Account")}
	if details.Account == nil {
		lines = append(lines, s.empty.Render("No account exposed by the wallet."))
	} else {
		lines = append(lines, field("account:", s.account.Render(details.Account.Hex()), s))
	}
	lines = append(lines, field("network:", s.value.Render(fmt.Sprintf("%s (%s)", details.NetworkName, hexutil.EncodeUint64(details.ChainID))), s))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderNetworks(descriptors []domain.ChainDescriptor, current uint64, s styles) string {
	lines := []string{
		s.title.Render("Networks"),
		s.header.Render(fmt.Sprintf("networks: %d", len(descriptors))),
	}

	for _, descriptor := range descriptors {
		marker := " "
		if descriptor.ChainID == current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-18s %-10s %s (%s)",
			marker,
			descriptor.Key,
			descriptor.HexChainID(),
			descriptor.ChainName,
			descriptor.NativeCurrency.Symbol,
		)
		if descriptor.ChainID == current {
			lines = append(lines, s.account.Render(line))
			continue
		}
		lines = append(lines, s.value.Render(line))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderMints(records []domain.MintRecord, now time.Time, s styles) string {
	lines := []string{
		s.title.Render("Minted NFTs"),
		s.header.Render(fmt.Sprintf("records: %d", len(records))),
	}

	if len(records) == 0 {
		lines = append(lines, s.empty.Render("No NFTs minted yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, record := range records {
		parts := []string{
			s.account.Render(record.TokenURI),
			field("tx:", s.value.Render(record.TxHash), s),
		}
		if record.Recipient != "" {
			parts = append(parts, field("recipient:", s.value.Render(record.Recipient), s))
		}
		parts = append(parts, field("minted:", s.value.Render(formatMintedAt(record.MintedAt, now)), s))
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(fmt.Sprintf("%-9s", label)), " ", value)
}

func stateStyle(state domain.SessionState, s styles) lipgloss.Style {
	switch state {
	case domain.StateConnected:
		return s.stateOK
	case domain.StateDisconnected:
		return s.stateOff
	default:
		return s.stateBusy
	}
}

func networkLabel(chainID uint64, catalog domain.ChainCatalog) string {
	if chainID == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", catalog.NetworkName(chainID), hexutil.EncodeUint64(chainID))
}

// balanceLabel only shows an amount that was measured on the current chain.
func balanceLabel(snapshot domain.Snapshot, catalog domain.ChainCatalog, s styles) string {
	symbol := "ETH"
	if descriptor, ok := catalog.LookupByChainID(snapshot.ChainID); ok {
		symbol = descriptor.NativeCurrency.Symbol
	}

	wei, fresh := snapshot.FreshBalance()
	if fresh {
		return s.balance.Render(fmt.Sprintf("%s %s", domain.FormatEther(wei), symbol))
	}
	if snapshot.State == domain.StateRefreshingBalance || snapshot.State == domain.StateSwitching {
		return s.pending.Render("refreshing...")
	}
	return s.warning.Render("n/a")
}

func formatMintedAt(mintedAt, now time.Time) string {
	if mintedAt.IsZero() {
		return "unknown"
	}
	if now.IsZero() {
		return mintedAt.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := mintedAt.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return mintedAt.Format("15:04")
	}

	return mintedAt.Format("15:04 on 02 Jan 2006")
}
