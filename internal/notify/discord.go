// Package notify posts finished analysis runs to chat channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"analisis-mcp/internal/analysis"
)

// Config holds the Discord bot credentials and target channel.
type Config struct {
	BotToken  string
	ChannelID string
	// ReportURL, when set, is a format string taking the run id that links
	// the embed title to the informe.
	ReportURL string
}

// Enabled reports whether enough is configured to send messages.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// EmbedSender is the slice of *discordgo.Session the notifier uses.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord sends one embed per completed run.
type Discord struct {
	sender  EmbedSender
	session *discordgo.Session
	config  Config
}

// NewDiscord opens a bot session for the configured token.
func NewDiscord(cfg Config) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Discord{sender: session, session: session, config: cfg}, nil
}

// NewDiscordWithSender builds a notifier over an existing sender.
func NewDiscordWithSender(sender EmbedSender, cfg Config) *Discord {
	return &Discord{sender: sender, config: cfg}
}

// RunCompleted implements analysis.Notifier.
func (d *Discord) RunCompleted(ctx context.Context, run *analysis.Run, project *analysis.Project) error {
	embed := BuildEmbed(run, project, d.config.ReportURL)
	if _, err := d.sender.ChannelMessageSendEmbed(d.config.ChannelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord embed: %w", err)
	}
	return nil
}

// Close closes the underlying session, if any.
func (d *Discord) Close() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

// BuildEmbed renders the summary embed of a run.
func BuildEmbed(run *analysis.Run, project *analysis.Project, reportURL string) *discordgo.MessageEmbed {
	color := 0x95A5A6
	switch run.Semaforo {
	case analysis.SemaforoVerde:
		color = 0x2ECC71
	case analysis.SemaforoAmarillo:
		color = 0xF1C40F
	case analysis.SemaforoRojo:
		color = 0xE74C3C
	}

	name := run.ProyectoNombre
	if project != nil && project.Nombre != "" {
		name = project.Nombre
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Semáforo", Value: run.Semaforo, Inline: true},
		{Name: "Puntaje", Value: fmt.Sprintf("%.2f", run.Score), Inline: true},
		{Name: "Modo", Value: run.Modo, Inline: true},
	}
	if project != nil && project.Gestor != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Gestor", Value: project.Gestor, Inline: true})
	}
	if run.CaseError != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Advertencias", Value: truncate(run.CaseError, 1024)})
	}

	ts := time.Now()
	if run.Fin != nil {
		ts = *run.Fin
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Análisis de salud · %s", name),
		Description: truncate(run.Resumen, 4096),
		Color:       color,
		Fields:      fields,
		Timestamp:   ts.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Run " + run.ID,
		},
	}
	if reportURL != "" {
		embed.URL = fmt.Sprintf(reportURL, run.ID)
	}
	return embed
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
