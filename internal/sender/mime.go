package sender

import (
	"bytes"
	"fmt"
	"mime/quotedprintable"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// htmlToText strips tags and collapses whitespace, used when a campaign
// has no explicit plain-text body.
func htmlToText(html string) string {
	text := tagRe.ReplaceAllString(html, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// textBody returns the plain part for a message, deriving one from the
// HTML when none was supplied.
func textBody(msg *Message) string {
	if msg.BodyText != "" {
		return msg.BodyText
	}
	return htmlToText(msg.BodyHTML)
}

// buildMIME assembles a multipart/alternative message with plain and HTML
// parts. Returns the raw message bytes and the generated Message-ID
// (without angle brackets).
func buildMIME(msg *Message, idDomain string) ([]byte, string) {
	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), idDomain)
	boundary := fmt.Sprintf("=_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:16])

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", formatFrom(msg.FromEmail, msg.FromName)))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	if msg.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	for k, v := range msg.Headers {
		buf.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	writePart(&buf, boundary, "text/plain", textBody(msg))
	writePart(&buf, boundary, "text/html", msg.BodyHTML)
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes(), messageID
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n", contentType))
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body))
	qp.Close()
	buf.WriteString("\r\n")
}
