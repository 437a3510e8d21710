// Package bounce turns raw mailbox feedback into verdicts that feed the
// suppression list.
package bounce

import (
	"regexp"
	"strings"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Classification is the result of parsing one feedback message.
type Classification struct {
	Verdict domain.BounceVerdict
	Email   string
	Code    string
	Reason  string
	// MessageID is the original outgoing Message-ID when the notification
	// carries one, used to resolve the campaign in the send log.
	MessageID string
}

// Phrase sets are checked in order; the first hit wins within a set.
// Hard phrases are checked before soft so "blocked ... try again later"
// reads as a block, not a deferral.
var (
	hardPhrases = []string{
		"user unknown",
		"mailbox not found",
		"no such user",
		"blacklisted",
		"blocked",
		"does not exist",
		"invalid recipient",
		"address rejected",
	}

	softPhrases = []string{
		"mailbox full",
		"over quota",
		"temporarily deferred",
		"try again later",
		"quota exceeded",
		"insufficient system storage",
	}

	complaintPhrases = []string{
		"spam complaint",
		"marked as spam",
		"reported as spam",
		"abuse report",
	}
)

var (
	finalRecipientRe  = regexp.MustCompile(`(?im)^Final-Recipient:\s*(?:rfc822;)?\s*<?([^\s<>;]+@[^\s<>;]+)>?`)
	origRecipientRe   = regexp.MustCompile(`(?im)^Original-Recipient:\s*(?:rfc822;)?\s*<?([^\s<>;]+@[^\s<>;]+)>?`)
	failedRecipientRe = regexp.MustCompile(`(?im)^X-Failed-Recipients:\s*<?([^\s<>;,]+@[^\s<>;,]+)>?`)
	feedbackTypeRe    = regexp.MustCompile(`(?im)^Feedback-Type:\s*(\S+)`)
	statusCodeRe      = regexp.MustCompile(`(?im)^Status:\s*(\d\.\d{1,3}\.\d{1,3})`)
	smtpReplyCodeRe   = regexp.MustCompile(`\b([45]\d{2})[ -]`)
	messageIDRe       = regexp.MustCompile(`(?im)^(?:Original-)?Message-ID:\s*<([^>]+)>`)
	anyAddressRe      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// Classify parses one raw feedback message (headers plus body as
// delivered by the mailbox source) into a verdict and the bounced
// address. It never fails: messages that match nothing come back as
// VerdictUnknown with whatever could be extracted.
func Classify(raw string) Classification {
	c := Classification{
		Email:     extractAddress(raw),
		Code:      extractCode(raw),
		MessageID: extractMessageID(raw),
	}

	lowered := strings.ToLower(raw)

	// Explicit abuse feedback (ARF) outranks phrase matching.
	if m := feedbackTypeRe.FindStringSubmatch(raw); m != nil {
		if strings.EqualFold(m[1], "abuse") || strings.EqualFold(m[1], "fraud") {
			c.Verdict = domain.BounceComplaint
			c.Reason = "feedback-type: " + strings.ToLower(m[1])
			return c
		}
	}

	if phrase := firstMatch(lowered, hardPhrases); phrase != "" {
		c.Verdict = domain.BounceHard
		c.Reason = phrase
		return c
	}
	if phrase := firstMatch(lowered, complaintPhrases); phrase != "" {
		c.Verdict = domain.BounceComplaint
		c.Reason = phrase
		return c
	}
	if phrase := firstMatch(lowered, softPhrases); phrase != "" {
		c.Verdict = domain.BounceSoft
		c.Reason = phrase
		return c
	}

	c.Verdict = domain.BounceUnknown
	return c
}

func firstMatch(lowered string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			return p
		}
	}
	return ""
}

// extractAddress pulls the bounced address out, preferring the DSN
// fields over a loose scan of the body.
func extractAddress(raw string) string {
	for _, re := range []*regexp.Regexp{finalRecipientRe, origRecipientRe, failedRecipientRe} {
		if m := re.FindStringSubmatch(raw); m != nil {
			return domain.NormalizeEmail(m[1])
		}
	}
	// Fall back to the first address in the body that is not the
	// reporting MTA's own mailer-daemon identity.
	for _, m := range anyAddressRe.FindAllString(raw, 10) {
		addr := domain.NormalizeEmail(m)
		local := strings.SplitN(addr, "@", 2)[0]
		if local == "mailer-daemon" || local == "postmaster" || local == "mail-daemon" {
			continue
		}
		return addr
	}
	return ""
}

// extractCode finds the DSN status code, or failing that an SMTP reply
// code, for the bounce record.
func extractCode(raw string) string {
	if m := statusCodeRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := smtpReplyCodeRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func extractMessageID(raw string) string {
	if m := messageIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
