package services

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Markiayn/Parser/logging"
	"github.com/Markiayn/Parser/models"
)

// CaptionLimit is Telegram's hard cap on photo captions.
const CaptionLimit = 1024

// Telegram delivers formatted listing posts to channels through the Bot API.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	priceThreshold int
	verbose        bool
	warn           *logging.Warnings
}

func NewTelegram(token string, priceThreshold int, verbose bool, warn *logging.Warnings) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{
		bot:            bot,
		priceThreshold: priceThreshold,
		verbose:        verbose,
		warn:           warn,
	}, nil
}

// TestConnection verifies the bot token against getMe.
func (t *Telegram) TestConnection() bool {
	me, err := t.bot.GetMe()
	if err != nil {
		log.Printf("Telegram connection failed: %v", err)
		return false
	}
	if t.verbose {
		log.Printf("Telegram bot connected: @%s", me.UserName)
	}
	return true
}

// SendApartment posts one listing to a channel, as a single photo or an
// album depending on how many photos it carries. Listings without photos
// are never sent.
func (t *Telegram) SendApartment(apt *models.Apartment, channel string) bool {
	if channel == "" || len(apt.Photos) == 0 {
		return false
	}

	caption := FormatApartmentMessage(apt, t.priceThreshold)
	if len(apt.Photos) == 1 {
		return t.SendSinglePhoto(channel, caption, apt.Photos[0])
	}
	return t.SendPhotoAlbum(channel, caption, apt.Photos)
}

func (t *Telegram) SendText(channel, text string) bool {
	msg := tgbotapi.MessageConfig{
		BaseChat:              baseChat(channel),
		Text:                  text,
		DisableWebPagePreview: true,
	}
	if _, err := t.bot.Send(msg); err != nil {
		t.warn.Warnf("[TELEGRAM] send text to %s: %v", channel, err)
		return false
	}
	return true
}

func (t *Telegram) SendSinglePhoto(channel, caption, photoPath string) bool {
	if _, err := os.Stat(photoPath); err != nil {
		t.warn.Warnf("[TELEGRAM] photo missing: %s", photoPath)
		return false
	}

	photo := tgbotapi.PhotoConfig{
		BaseFile: tgbotapi.BaseFile{
			BaseChat: baseChat(channel),
			File:     tgbotapi.FilePath(photoPath),
		},
		Caption: caption,
	}
	if _, err := t.bot.Send(photo); err != nil {
		t.warn.Warnf("[TELEGRAM] send photo to %s: %v", channel, err)
		return false
	}
	return true
}

func (t *Telegram) SendPhotoAlbum(channel, caption string, photoPaths []string) bool {
	var media []interface{}
	for i, path := range photoPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		item := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(path))
		if i == 0 {
			item.Caption = caption
		}
		media = append(media, item)
	}
	if len(media) < 2 {
		// Telegram rejects one-item albums.
		if len(photoPaths) > 0 {
			return t.SendSinglePhoto(channel, caption, photoPaths[0])
		}
		return false
	}

	chat := baseChat(channel)
	group := tgbotapi.MediaGroupConfig{
		ChatID:          chat.ChatID,
		ChannelUsername: chat.ChannelUsername,
		Media:           media,
	}
	if _, err := t.bot.SendMediaGroup(group); err != nil {
		t.warn.Warnf("[TELEGRAM] send album to %s: %v", channel, err)
		return false
	}
	return true
}

// baseChat resolves a configured channel value: numeric chat IDs go through
// ChatID, anything else is treated as a channel username.
func baseChat(channel string) tgbotapi.BaseChat {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tgbotapi.BaseChat{ChatID: id}
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return tgbotapi.BaseChat{ChannelUsername: channel}
}

// FormatApartmentMessage renders the channel post caption. The description
// is budgeted so the header and the key facts always fit within the caption
// limit; only the description gets truncated.
func FormatApartmentMessage(apt *models.Apartment, priceThreshold int) string {
	const header = "НОВА КВАРТИРА ДЛЯ ОРЕНДИ\n\n"

	important := fmt.Sprintf(
		"📍 Адреса: %s\n"+
			"💵 Ціна: %s\n"+
			"🏢 Поверх: %d/%d\n"+
			"🛏 Кімнат: %d\n"+
			"📐 Площа: %.1f м²",
		apt.Address,
		FormatPrice(apt.Price, priceThreshold),
		apt.Floor,
		apt.FloorsCount,
		apt.Rooms,
		apt.Area,
	)
	if apt.Phone != "" {
		important += "\n📞 Телефон: " + apt.Phone
	}

	var sb strings.Builder
	sb.WriteString(header)

	budget := CaptionLimit - len([]rune(header)) - len([]rune(important)) - 20
	if apt.Description != "" && budget > 50 {
		desc := apt.Description
		if len([]rune(desc)) > budget {
			desc = TruncateCaption(desc, budget)
		}
		sb.WriteString("📝 Опис: ")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	sb.WriteString(important)

	result := sb.String()
	if len([]rune(result)) > CaptionLimit {
		essential := header + important
		if r := []rune(essential); len(r) > CaptionLimit {
			return string(r[:CaptionLimit-3]) + "..."
		}
		return essential
	}
	return result
}

// TruncateCaption cuts text to at most limit runes, preferring the last
// sentence boundary, then the last word boundary, then a hard cut with an
// ellipsis.
func TruncateCaption(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := runes[:limit]

	lastSentence := -1
	for i, r := range cut {
		if r == '.' || r == '!' || r == '?' {
			lastSentence = i
		}
	}
	if lastSentence > 30 {
		return string(cut[:lastSentence+1])
	}

	lastSpace := -1
	for i, r := range cut {
		if r == ' ' {
			lastSpace = i
		}
	}
	if lastSpace > 50 {
		return string(cut[:lastSpace]) + "..."
	}
	return string(cut) + "..."
}

// FormatPrice renders a price using the currency-inference heuristic: values
// under the threshold are assumed to be dollars, everything else hryvnia per
// month. The threshold is configuration, not a constant.
func FormatPrice(price, threshold int) string {
	if price < threshold {
		return fmt.Sprintf("%d $", price)
	}
	return fmt.Sprintf("%d грн/міс", price)
}
