package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const botActor = "admin_bot"

// AdminBot handles admin commands via Telegram: payment verification,
// tier sweeps and lookups.
type AdminBot struct {
	bot       *tgbotapi.BotAPI
	tiers     *service.TierService
	admin     *service.AdminService
	referrals *service.ReferralService
	audit     *service.AuditService

	mu       sync.RWMutex
	adminIDs []int64 // Telegram user IDs who can use admin commands

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

// NewAdminBot creates a new admin bot
func NewAdminBot(token string, tiers *service.TierService, admin *service.AdminService, referrals *service.ReferralService, audit *service.AuditService, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := newAdminBot(api, tiers, admin, referrals, audit, adminIDs)
	b.log.Info("admin bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newAdminBot(api *tgbotapi.BotAPI, tiers *service.TierService, admin *service.AdminService, referrals *service.ReferralService, audit *service.AuditService, adminIDs []int64) *AdminBot {
	return &AdminBot{
		bot:       api,
		tiers:     tiers,
		admin:     admin,
		referrals: referrals,
		audit:     audit,
		adminIDs:  append([]int64(nil), adminIDs...),
		stopCh:    make(chan struct{}),
		log:       logger.With("component", "admin_bot"),
	}
}

// Start starts listening for commands
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || msg.From == nil || !msg.IsCommand() {
				continue
			}
			if !b.isAdmin(msg.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(msg)
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) admins() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]int64(nil), b.adminIDs...)
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response := b.respond(ctx, msg.Command(), msg.CommandArguments())

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID
	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

// respond runs one admin command and returns the HTML reply
func (b *AdminBot) respond(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)
	switch command {
	case "start", "help":
		return helpMessage
	case "stats":
		return b.handleStats(ctx)
	case "account":
		return b.handleAccount(ctx, args)
	case "payments":
		return b.handlePendingPayments(ctx)
	case "approve":
		return b.handleVerify(ctx, args, true)
	case "reject":
		return b.handleVerify(ctx, args, false)
	case "sweep":
		return b.handleSweep(ctx)
	case "referrals":
		return b.handleReferralLeaders(ctx, args)
	case "addadmin":
		return b.handleAddAdmin(args)
	default:
		return "❌ Unknown command. Use /help for the command list."
	}
}

const helpMessage = `<b>🤖 Admin commands</b>

<b>📊 Stats:</b>
/stats - Platform statistics
/referrals [limit] - Top referrers

<b>👤 Accounts:</b>
/account &lt;id|email|referral code&gt; - Account details

<b>💳 Payments:</b>
/payments - Pending tier payments
/approve &lt;payment id&gt; - Confirm and upgrade the tier
/reject &lt;payment id&gt; [reason] - Reject a payment
/sweep - Reset expired tiers now

<b>🔐 Admins:</b>
/addadmin &lt;tg_id&gt; - Add an admin until restart`

func (b *AdminBot) handleStats(ctx context.Context) string {
	stats, err := b.admin.GetStats(ctx)
	if err != nil {
		return errorReply(err)
	}

	return fmt.Sprintf(`<b>📊 Platform statistics</b>

<b>👥 Accounts:</b> %d

<b>⛏ Claims:</b>
• Today: %d
• Last 7 days: %d

<b>💳 Pending payments:</b> %d`,
		stats.TotalAccounts,
		stats.ClaimsToday,
		stats.ClaimsWeek,
		stats.PendingPayments,
	)
}

func (b *AdminBot) handleAccount(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Usage: /account &lt;id|email|referral code&gt;"
	}

	info, err := b.admin.GetAccount(ctx, args)
	if err != nil {
		return errorReply(err)
	}
	acc := info.Account
	now := time.Now()

	expires := "-"
	if acc.TierExpiresAt != nil {
		expires = acc.TierExpiresAt.Format("02.01.2006 15:04")
	}
	lastClaim := "never"
	if acc.LastClaimAt != nil {
		lastClaim = acc.LastClaimAt.Format("02.01.2006 15:04")
	}

	return fmt.Sprintf(`<b>👤 Account</b>

• ID: <code>%s</code>
• Email: %s
• Tier: %s (effective %s, expires %s)
• Verified: %t
• Referral code: <code>%s</code>
• Referrals: %d
• Claims: %d (last %s)
• TEOS: %s
• TUT: %s
• ERT: %s
• Joined: %s`,
		acc.ID,
		html.EscapeString(acc.Email),
		acc.Tier, acc.EffectiveTier(now), expires,
		acc.CivicVerified,
		acc.ReferralCode,
		acc.TotalReferrals,
		acc.TotalClaims, lastClaim,
		info.Balances.Get(domain.TokenTEOS),
		info.Balances.Get(domain.TokenTUT),
		info.Balances.Get(domain.TokenERT),
		acc.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *AdminBot) handlePendingPayments(ctx context.Context) string {
	payments, err := b.tiers.PendingPayments(ctx, 20)
	if err != nil {
		return errorReply(err)
	}
	if len(payments) == 0 {
		return "✅ No pending payments"
	}

	var sb strings.Builder
	sb.WriteString("<b>💳 Pending payments</b>\n\n")
	for _, p := range payments {
		sb.WriteString(fmt.Sprintf("🆔 <code>%s</code>\n", p.ID))
		sb.WriteString(fmt.Sprintf("⬆️ %s for $%s (%s)\n", p.Tier, p.Amount, html.EscapeString(p.Currency)))
		sb.WriteString(fmt.Sprintf("🔗 <code>%s</code>\n", html.EscapeString(p.TransactionRef)))
		sb.WriteString(fmt.Sprintf("📅 %s\n\n", p.SubmittedAt.Format("02.01.2006 15:04")))
	}
	sb.WriteString("/approve &lt;id&gt; - confirm\n/reject &lt;id&gt; [reason] - reject")
	return sb.String()
}

func (b *AdminBot) handleVerify(ctx context.Context, args string, approved bool) string {
	parts := strings.SplitN(args, " ", 2)
	if parts[0] == "" {
		if approved {
			return "❌ Usage: /approve &lt;payment id&gt;"
		}
		return "❌ Usage: /reject &lt;payment id&gt; [reason]"
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return "❌ Invalid payment ID"
	}

	p, acc, err := b.tiers.VerifyPayment(ctx, id, approved, botActor)
	if err != nil {
		return errorReply(err)
	}

	details := map[string]interface{}{"payment_id": id.String(), "approved": approved}
	if len(parts) == 2 {
		details["reason"] = strings.TrimSpace(parts[1])
	}
	b.audit.LogAdminAction(ctx, botActor, "payment_verify", details)

	if !approved {
		return fmt.Sprintf("❌ Payment <code>%s</code> rejected", p.ID)
	}
	return fmt.Sprintf("✅ Payment <code>%s</code> confirmed\nAccount upgraded to %s until %s",
		p.ID, acc.Tier, acc.TierExpiresAt.Format("02.01.2006 15:04"))
}

func (b *AdminBot) handleSweep(ctx context.Context) string {
	ids, err := b.tiers.SweepExpiredTiers(ctx)
	if err != nil {
		return errorReply(err)
	}
	b.audit.LogAdminAction(ctx, botActor, "tier_sweep", map[string]interface{}{"reset": len(ids)})
	return fmt.Sprintf("✅ %d expired tier(s) reset to free", len(ids))
}

func (b *AdminBot) handleReferralLeaders(ctx context.Context, args string) string {
	limit := 20
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	leaders, err := b.referrals.Leaderboard(ctx, limit)
	if err != nil {
		return errorReply(err)
	}
	if len(leaders) == 0 {
		return "❌ No accounts with referrals yet"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>👥 Top %d referrers</b>\n\n", limit))
	for _, l := range leaders {
		sb.WriteString(fmt.Sprintf("%d. %s (<code>%s</code>) - %d referrals\n",
			l.Rank, html.EscapeString(l.Email), l.ReferralCode, l.TotalReferrals))
	}
	return sb.String()
}

func (b *AdminBot) handleAddAdmin(args string) string {
	if args == "" {
		return "❌ Usage: /addadmin &lt;tg_id&gt;"
	}
	tgID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		return "❌ Invalid Telegram ID"
	}
	if b.isAdmin(tgID) {
		return fmt.Sprintf("⚠️ User %d is already an admin", tgID)
	}

	b.mu.Lock()
	b.adminIDs = append(b.adminIDs, tgID)
	b.mu.Unlock()
	b.log.Info("added new admin", "tg_id", tgID)

	return fmt.Sprintf("✅ Added admin %d\n\n⚠️ Lasts until restart. Add it to ADMIN_TELEGRAM_IDS to keep it.", tgID)
}

func errorReply(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "❌ Not found"
	}
	return fmt.Sprintf("❌ Error: %s", html.EscapeString(err.Error()))
}

// NotifyPaymentSubmitted tells every admin about a new payment proof
func (b *AdminBot) NotifyPaymentSubmitted(ctx context.Context, p *domain.Payment, acc *domain.Account) {
	message := fmt.Sprintf(`🔔 <b>New tier payment!</b>

👤 Account: %s
⬆️ %s → %s for $%s (%s)
🔗 <code>%s</code>

ID: <code>%s</code>

/approve %s - confirm
/reject %s - reject`,
		html.EscapeString(acc.Email), acc.Tier, p.Tier, p.Amount, html.EscapeString(p.Currency),
		html.EscapeString(p.TransactionRef), p.ID, p.ID, p.ID)

	if b.bot == nil {
		b.log.Info("payment notification skipped, bot offline", "payment_id", p.ID)
		return
	}
	for _, adminID := range b.admins() {
		msg := tgbotapi.NewMessage(adminID, message)
		msg.ParseMode = "HTML"
		if _, err := b.bot.Send(msg); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
		}
	}
}

var _ service.PaymentNotifier = (*AdminBot)(nil)
