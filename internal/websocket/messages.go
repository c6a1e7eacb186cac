package websocket

import (
	"time"

	"signaldesk/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeSignal - новый оцененный сигнал (включая отбракованные)
	MessageTypeSignal MessageType = "signalUpdate"

	// MessageTypeTradeOpened - сигнал прошел фильтры и попал в журнал
	MessageTypeTradeOpened MessageType = "tradeOpened"

	// MessageTypeTradeResolved - трекер разрешил сделку (win/loss/expired)
	MessageTypeTradeResolved MessageType = "tradeResolved"

	// MessageTypeApexAlert - срабатывание правила Apex
	MessageTypeApexAlert MessageType = "apexAlert"

	// MessageTypeStatsUpdate - обновление сводной статистики
	// Отправляется после каждого разрешения сделки
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeCandle - свежая свеча (для графика на дашборде)
	MessageTypeCandle MessageType = "candleUpdate"

	// MessageTypeNotification - новое уведомление в ленту событий
	MessageTypeNotification MessageType = "notification"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// SignalMessage - сообщение о новом оцененном сигнале
type SignalMessage struct {
	BaseMessage
	Data *models.Signal `json:"data"`
}

// TradeMessage - сообщение о сделке (открытие или разрешение)
type TradeMessage struct {
	BaseMessage
	Data *models.Trade `json:"data"`
}

// ApexAlertMessage - сообщение о срабатывании правила Apex
type ApexAlertMessage struct {
	BaseMessage
	Data *models.ApexAlert `json:"data"`
}

// StatsUpdateMessage - сообщение с обновленной статистикой
type StatsUpdateMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// CandleMessage - сообщение со свежей свечой
type CandleMessage struct {
	BaseMessage
	Data *models.Candle `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewSignalMessage создает сообщение о сигнале
func NewSignalMessage(signal *models.Signal) *SignalMessage {
	return &SignalMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSignal, Timestamp: time.Now()},
		Data:        signal,
	}
}

// NewTradeOpenedMessage создает сообщение об открытии сделки
func NewTradeOpenedMessage(trade *models.Trade) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTradeOpened, Timestamp: time.Now()},
		Data:        trade,
	}
}

// NewTradeResolvedMessage создает сообщение о разрешении сделки
func NewTradeResolvedMessage(trade *models.Trade) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTradeResolved, Timestamp: time.Now()},
		Data:        trade,
	}
}

// NewApexAlertMessage создает сообщение о срабатывании правила Apex
func NewApexAlertMessage(alert *models.ApexAlert) *ApexAlertMessage {
	return &ApexAlertMessage{
		BaseMessage: BaseMessage{Type: MessageTypeApexAlert, Timestamp: time.Now()},
		Data:        alert,
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats interface{}) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeStatsUpdate, Timestamp: time.Now()},
		Data:        stats,
	}
}

// NewCandleMessage создает сообщение со свечой
func NewCandleMessage(candle *models.Candle) *CandleMessage {
	return &CandleMessage{
		BaseMessage: BaseMessage{Type: MessageTypeCandle, Timestamp: time.Now()},
		Data:        candle,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNotification, Timestamp: time.Now()},
		Data:        notif,
	}
}
