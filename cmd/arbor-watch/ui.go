// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/ref"
	"github.com/arbor-works/arbor/portalapi"
	"github.com/arbor-works/arbor/realtime"
)

const fetchTimeout = 15 * time.Second

// Messages delivered into the tea event loop. Stream and store
// callbacks convert to these via program.Send; commands return them.
type (
	streamStatusMsg    struct{ status realtime.Status }
	streamErrorMsg     struct{ err error }
	invalidationMsg    struct{ inv cache.Invalidation }
	presenceChangedMsg struct{}

	conversationsLoadedMsg struct {
		conversations []cache.ConversationSummary
		err           error
	}
	messagesLoadedMsg struct {
		conversation ref.ConversationID
		err          error
	}
	unreadLoadedMsg struct {
		count int
		err   error
	}
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unreadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	localStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	sidebarStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).PaddingRight(1)
)

type model struct {
	session  *portalapi.Session
	store    *cache.Store
	presence *cache.PresenceTracker

	status  realtime.Status
	lastErr error

	conversations []cache.ConversationSummary
	selected      int
	unread        int
	roster        []cache.PresenceRecord

	feed   viewport.Model
	width  int
	height int
	ready  bool
}

func newModel(session *portalapi.Session, store *cache.Store, presence *cache.PresenceTracker) model {
	return model{
		session:  session,
		store:    store,
		presence: presence,
		status:   realtime.StatusDisconnected,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), m.loadUnread())
}

// loadConversations fetches the conversation list and populates the
// store; the message reads in View go through the store so the stream
// reconciler and the REST path stay merged in one place.
func (m model) loadConversations() tea.Cmd {
	session, store := m.session, m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		conversations, err := session.ListConversations(ctx)
		if err != nil {
			return conversationsLoadedMsg{err: err}
		}
		store.PopulateConversationList(conversations)
		return conversationsLoadedMsg{conversations: conversations}
	}
}

func (m model) loadMessages(conversation ref.ConversationID) tea.Cmd {
	session, store := m.session, m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		page, err := session.ConversationMessages(ctx, conversation, portalapi.PageOptions{})
		if err != nil {
			return messagesLoadedMsg{conversation: conversation, err: err}
		}
		store.PopulateConversation(conversation, page.Messages)
		return messagesLoadedMsg{conversation: conversation}
	}
}

func (m model) loadUnread() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		count, err := session.UnreadCount(ctx)
		return unreadLoadedMsg{count: count, err: err}
	}
}

func (m model) selectedConversation() (ref.ConversationID, bool) {
	if m.selected < 0 || m.selected >= len(m.conversations) {
		return ref.ConversationID{}, false
	}
	return m.conversations[m.selected].ID, true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		feedHeight := msg.Height - 4
		if feedHeight < 1 {
			feedHeight = 1
		}
		feedWidth := msg.Width - sidebarWidth(msg.Width) - 3
		if feedWidth < 1 {
			feedWidth = 1
		}
		if !m.ready {
			m.feed = viewport.New(feedWidth, feedHeight)
			m.ready = true
		} else {
			m.feed.Width = feedWidth
			m.feed.Height = feedHeight
		}
		m.refreshFeed()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				if id, ok := m.selectedConversation(); ok {
					m.refreshFeed()
					return m, m.loadMessages(id)
				}
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.conversations)-1 {
				m.selected++
				if id, ok := m.selectedConversation(); ok {
					m.refreshFeed()
					return m, m.loadMessages(id)
				}
			}
			return m, nil
		case "r":
			return m, tea.Batch(m.loadConversations(), m.loadUnread())
		}
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd

	case streamStatusMsg:
		m.status = msg.status
		if msg.status == realtime.StatusConnected {
			m.lastErr = nil
		}
		return m, nil

	case streamErrorMsg:
		m.lastErr = msg.err
		return m, nil

	case presenceChangedMsg:
		m.roster = m.presence.Snapshot()
		return m, nil

	case invalidationMsg:
		return m, m.handleInvalidation(msg.inv)

	case conversationsLoadedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.conversations = msg.conversations
		if m.selected >= len(m.conversations) {
			m.selected = len(m.conversations) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		if id, ok := m.selectedConversation(); ok {
			if _, populated := m.store.ConversationMessages(id); !populated {
				return m, m.loadMessages(id)
			}
		}
		m.refreshFeed()
		return m, nil

	case messagesLoadedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.refreshFeed()
		return m, nil

	case unreadLoadedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.unread = msg.count
		return m, nil
	}

	return m, nil
}

// handleInvalidation schedules the refetches an invalidation calls
// for. Message invalidations only refetch when they touch the
// conversation on screen; the store's populated lists for other
// conversations are already updated in place by the reconciler.
func (m *model) handleInvalidation(inv cache.Invalidation) tea.Cmd {
	switch inv.Kind {
	case cache.InvalidateConversations:
		return m.loadConversations()
	case cache.InvalidateMessages:
		id, ok := m.selectedConversation()
		if !ok {
			return nil
		}
		if !inv.Conversation.IsZero() && inv.Conversation != id {
			return nil
		}
		m.refreshFeed()
		return nil
	case cache.InvalidateUnreadCount, cache.InvalidateNotifications:
		return m.loadUnread()
	}
	return nil
}

func (m *model) refreshFeed() {
	if !m.ready {
		return
	}
	id, ok := m.selectedConversation()
	if !ok {
		m.feed.SetContent(dimStyle.Render("no conversations"))
		return
	}
	messages, populated := m.store.ConversationMessages(id)
	if !populated {
		m.feed.SetContent(dimStyle.Render("loading..."))
		return
	}
	atBottom := m.feed.AtBottom()
	var b strings.Builder
	for _, message := range messages {
		b.WriteString(renderMessage(message, m.presence))
		b.WriteByte('\n')
	}
	m.feed.SetContent(b.String())
	if atBottom {
		m.feed.GotoBottom()
	}
}

func renderMessage(message cache.Message, presence *cache.PresenceTracker) string {
	sender := message.SenderID.String()
	if presence.IsOnline(message.SenderID) {
		sender = onlineStyle.Render(sender)
	}
	stamp := dimStyle.Render(message.CreatedAt.Local().Format("15:04"))
	line := fmt.Sprintf("%s %s  %s", stamp, sender, message.Body)
	if message.Local {
		return localStyle.Render(line + "  (sending)")
	}
	var marks []string
	for _, receipt := range message.Receipts {
		switch receipt.Kind {
		case cache.ReceiptRead:
			marks = append(marks, "✓")
		case cache.ReceiptAcknowledged:
			marks = append(marks, "✓✓")
		}
	}
	if message.Status == "failed" {
		line += "  " + errorStyle.Render("[failed]")
	}
	if len(marks) > 0 {
		line += "  " + dimStyle.Render(strings.Join(marks, " "))
	}
	return line
}

func sidebarWidth(total int) int {
	width := total / 3
	if width < 20 {
		width = 20
	}
	if width > 40 {
		width = 40
	}
	return width
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	var statusLabel string
	switch m.status {
	case realtime.StatusConnected:
		statusLabel = connectedStyle.Render("● connected")
	case realtime.StatusConnecting:
		statusLabel = pendingStyle.Render("◌ connecting")
	case realtime.StatusError:
		statusLabel = errorStyle.Render("✖ error")
	default:
		statusLabel = dimStyle.Render("○ disconnected")
	}
	badge := ""
	if m.unread > 0 {
		badge = unreadStyle.Render(fmt.Sprintf("  %d unread", m.unread))
	}
	header := headerStyle.Render("arbor-watch  " + statusLabel + badge)

	sidebar := m.renderSidebar()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, m.feed.View())

	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) renderSidebar() string {
	width := sidebarWidth(m.width)
	var b strings.Builder
	for index, conversation := range m.conversations {
		title := conversation.Title
		if title == "" {
			title = conversation.ID.String()
		}
		if conversation.UnreadCount > 0 {
			title = fmt.Sprintf("%s (%d)", title, conversation.UnreadCount)
		}
		if len(title) > width-2 {
			title = title[:width-2]
		}
		if index == m.selected {
			b.WriteString(selectedStyle.Render("> " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteByte('\n')
	}
	if len(m.conversations) == 0 {
		b.WriteString(dimStyle.Render("no conversations"))
	}
	return sidebarStyle.Width(width).Height(m.feed.Height).Render(b.String())
}

func (m model) renderFooter() string {
	var online []string
	for _, record := range m.roster {
		if record.Online {
			online = append(online, record.UserID.String())
		}
	}
	left := dimStyle.Render("q quit  j/k select  r refresh")
	if len(online) > 0 {
		left += "  " + onlineStyle.Render("online: "+strings.Join(online, ", "))
	}
	if m.lastErr != nil {
		left += "  " + errorStyle.Render(m.lastErr.Error())
	}
	return headerStyle.Render(left)
}
