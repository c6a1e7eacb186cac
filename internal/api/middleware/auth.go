package middleware

import (
	"net/http"
	"os"
	"strings"

	"signaldesk/pkg/crypto"
)

// debugUsername и debugPassword для защиты debug endpoints.
// Загружаются из переменных окружения DEBUG_USERNAME и DEBUG_PASSWORD.
// Если не установлены, debug endpoints будут недоступны в production.
var (
	debugUsername = os.Getenv("DEBUG_USERNAME")
	debugPassword = os.Getenv("DEBUG_PASSWORD")
)

// DashboardAuth - защита API дашборда паролем
//
// Назначение:
// Дашборд персональный, но может быть выставлен наружу через туннель,
// поэтому все /api/v1 маршруты закрываются одним паролем.
//
// Проверка:
// - пароль приходит в заголовке Authorization: Bearer <password>
//   или X-Dashboard-Password (для простых fetch'ей из браузера)
// - сверяется с bcrypt-хешем из конфигурации (DASHBOARD_PASSWORD_HASH)
// - пустой хеш = локальное развертывание без auth, запросы пропускаются
//
// HTTP коды:
// - 401 Unauthorized: пароль отсутствует или не подошел
func DashboardAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Auth не настроен - локальное развертывание
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			password := r.Header.Get("X-Dashboard-Password")
			if password == "" {
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					password = strings.TrimPrefix(h, "Bearer ")
				}
			}

			if password == "" || !crypto.CheckPasswordMatch(password, passwordHash) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WebhookAuth - проверка секрета входящих webhook'ов
//
// Назначение:
// TradingView не умеет подписывать алерты, поэтому webhook защищается
// общим секретом. Секрет приходит открытым текстом в каждом запросе:
// в заголовке X-Webhook-Secret или query параметре ?secret=
// (alert-сообщения TradingView не позволяют задать заголовки).
//
// Сравнение за константное время (см. crypto.SecureCompare).
//
// HTTP коды:
// - 403 Forbidden: секрет отсутствует или не совпал
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Webhook-Secret")
			if got == "" {
				got = r.URL.Query().Get("secret")
			}

			if !crypto.SecureCompare(got, secret) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DebugAuth - middleware для защиты debug/pprof endpoints
//
// Назначение:
// Защищает debug endpoints (/debug/pprof/*) от неавторизованного доступа
// через HTTP Basic Authentication.
//
// Конфигурация:
// - DEBUG_USERNAME / DEBUG_PASSWORD: credentials для доступа
// - Если переменные не установлены, в production доступ запрещен,
//   в development (ENV пустой или "development") - разрешен
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if debugUsername == "" || debugPassword == "" {
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD.", http.StatusForbidden)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение для предотвращения timing attacks
		userMatch := crypto.SecureCompare(user, debugUsername)
		passMatch := crypto.SecureCompare(pass, debugPassword)

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
