// auth.go — опциональная проверка JWT Keycloak (OA_JWT_VERIFY).
// Токен может быть выдан master realm (супер-администратор) или realm организации.
// Realm определяется по issuer; ключи подписи берутся из JWKS этого realm.
// JWKS хранятся в LRU-кэше: при вытеснении фоновое обновление ключей останавливается.
// Неудачные загрузки кэшируются отдельно на короткое время.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	apierrors "github.com/bigkaa/org-admin/internal/api/errors"
	"github.com/bigkaa/org-admin/internal/domain/rbac"
)

// AuthClaims — проверенные claims токена Keycloak.
// Помещаются в контекст запроса для downstream handlers.
type AuthClaims struct {
	// Realm — realm, выдавший токен (из issuer).
	Realm string
	// Subject — sub из JWT (Keycloak user ID).
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Email — email из JWT.
	Email string
	// Roles — роли из realm_access.roles.
	Roles []string
}

// HasRole проверяет наличие realm-роли.
func (c *AuthClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

// realmAccess — вложенная структура realm_access в Keycloak JWT.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// KeySource возвращает keyfunc для проверки подписи токенов realm.
type KeySource interface {
	Keyfunc(realm string) (keyfunc.Keyfunc, error)
}

// staticKeySource — один набор ключей для всех realm (тесты).
type staticKeySource struct {
	kf keyfunc.Keyfunc
}

func (s staticKeySource) Keyfunc(string) (keyfunc.Keyfunc, error) {
	return s.kf, nil
}

// jwksEntry — keyfunc realm и отмена фонового обновления его JWKS.
type jwksEntry struct {
	kf     keyfunc.Keyfunc
	cancel context.CancelFunc
}

const (
	defaultJWKSCacheSize = 64
	// failedRealmTTL — сколько помнится realm, JWKS которого не загрузился.
	failedRealmTTL = 30 * time.Second
	// maxJWKSFetches — максимум одновременных первичных загрузок JWKS.
	maxJWKSFetches = 4
)

// errJWKSBusy — все слоты первичной загрузки JWKS заняты.
var errJWKSBusy = errors.New("превышен лимит одновременных загрузок JWKS")

// errJWKSClosed — источник ключей остановлен.
var errJWKSClosed = errors.New("источник JWKS остановлен")

// RealmJWKS — JWKS по realm с ограниченным LRU-кэшем.
// Realm берётся из непроверенного issuer, поэтому загрузка ограничена:
// не более одной на realm (singleflight), не более maxJWKSFetches всего,
// неудачный realm не кэшируется и не загружается повторно failedRealmTTL.
type RealmJWKS struct {
	baseURL         string
	httpClient      *http.Client
	refreshInterval time.Duration
	logger          *slog.Logger

	cache   *expirable.LRU[string, *jwksEntry]
	failed  *expirable.LRU[string, error]
	group   singleflight.Group
	fetches *semaphore.Weighted

	mu     sync.Mutex
	closed bool
}

// NewRealmJWKS создаёт источник ключей.
// baseURL — базовый URL Keycloak.
// httpClient — HTTP-клиент (с CA, если задан OA_CA_CERT_PATH).
// refreshInterval — интервал обновления JWKS (OA_JWKS_REFRESH_INTERVAL).
// cacheSize — максимум realm в кэше (OA_JWKS_CACHE_SIZE).
func NewRealmJWKS(baseURL string, httpClient *http.Client, refreshInterval time.Duration, cacheSize int, logger *slog.Logger) *RealmJWKS {
	logger = logger.With(slog.String("component", "realm_jwks"))
	if cacheSize <= 0 {
		cacheSize = defaultJWKSCacheSize
	}

	onEvict := func(realm string, e *jwksEntry) {
		e.cancel()
		logger.Debug("JWKS realm вытеснен из кэша", slog.String("realm", realm))
	}

	return &RealmJWKS{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      httpClient,
		refreshInterval: refreshInterval,
		logger:          logger,
		cache:           expirable.NewLRU[string, *jwksEntry](cacheSize, onEvict, 0),
		failed:          expirable.NewLRU[string, error](cacheSize, nil, failedRealmTTL),
		fetches:         semaphore.NewWeighted(maxJWKSFetches),
	}
}

// certsURL возвращает URL JWKS endpoint realm.
func (s *RealmJWKS) certsURL(realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", s.baseURL, url.PathEscape(realm))
}

// Keyfunc возвращает keyfunc realm, загружая JWKS при первом обращении.
// Загрузка идёт без общей блокировки: проверка токенов уже известных realm не ждёт.
func (s *RealmJWKS) Keyfunc(realm string) (keyfunc.Keyfunc, error) {
	if e, ok := s.cache.Get(realm); ok {
		return e.kf, nil
	}
	if err, ok := s.failed.Get(realm); ok {
		return nil, err
	}

	v, err, _ := s.group.Do(realm, func() (any, error) {
		if e, ok := s.cache.Get(realm); ok {
			return e.kf, nil
		}
		if err, ok := s.failed.Get(realm); ok {
			return nil, err
		}
		if !s.fetches.TryAcquire(1) {
			return nil, errJWKSBusy
		}
		defer s.fetches.Release(1)

		kf, err := s.load(realm)
		if err != nil {
			if !errors.Is(err, errJWKSClosed) {
				s.failed.Add(realm, err)
			}
			return nil, err
		}
		return kf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(keyfunc.Keyfunc), nil
}

// load загружает JWKS realm и запускает его фоновое обновление.
// Первый запрос синхронный: realm без JWKS в кэш не попадает.
func (s *RealmJWKS) load(realm string) (keyfunc.Keyfunc, error) {
	jwksURL := s.certsURL(realm)
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:          s.httpClient,
		Ctx:             ctx,
		RefreshInterval: s.refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			s.logger.Warn("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		cancel()
		s.logger.Warn("JWKS realm не загружен",
			slog.String("realm", realm),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("загрузка JWKS realm %s: %w", realm, err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("создание keyfunc для realm %s: %w", realm, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return nil, errJWKSClosed
	}
	s.cache.Add(realm, &jwksEntry{kf: kf, cancel: cancel})
	s.logger.Debug("JWKS realm загружен", slog.String("realm", realm), slog.String("url", jwksURL))
	return kf, nil
}

// Len возвращает число realm в кэше.
func (s *RealmJWKS) Len() int {
	return s.cache.Len()
}

// Close останавливает обновление всех JWKS.
func (s *RealmJWKS) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cache.Purge()
}

// JWTAuth — middleware проверки JWT Keycloak.
type JWTAuth struct {
	keys         KeySource
	issuerPrefix string
	jwtLeeway    time.Duration
	logger       *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// issuerBase — базовый URL Keycloak, как он указан в iss токенов.
// jwtLeeway — допустимое отклонение времени (OA_JWT_LEEWAY).
func NewJWTAuth(keys KeySource, issuerBase string, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keys:         keys,
		issuerPrefix: strings.TrimRight(issuerBase, "/") + "/realms/",
		jwtLeeway:    jwtLeeway,
		logger:       logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с одной keyfunc для всех realm.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuerBase string, logger *slog.Logger) *JWTAuth {
	return NewJWTAuth(staticKeySource{kf: kf}, issuerBase, 0, logger)
}

// realmFromIssuer извлекает realm из iss. Чужой issuer — пустая строка.
func (j *JWTAuth) realmFromIssuer(iss string) string {
	if !strings.HasPrefix(iss, j.issuerPrefix) {
		return ""
	}
	realm := strings.TrimPrefix(iss, j.issuerPrefix)
	if realm == "" || strings.Contains(realm, "/") {
		return ""
	}
	if unescaped, err := url.PathUnescape(realm); err == nil {
		realm = unescaped
	}
	return realm
}

// Middleware возвращает HTTP middleware проверки JWT.
// Должен использоваться ПОСЛЕ BearerToken().
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromContext(r.Context())
			if tokenString == "" {
				apierrors.Unauthorized(w, errNoAuthorization.Error())
				return
			}

			claims, err := j.verify(r.Context(), tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Invalid or expired token.")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verify проверяет подпись (RS256), срок действия и issuer токена.
func (j *JWTAuth) verify(ctx context.Context, tokenString string) (*AuthClaims, error) {
	// Issuer читается до проверки подписи только для выбора JWKS realm.
	unverified := &keycloakClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, fmt.Errorf("разбор токена: %w", err)
	}

	realm := j.realmFromIssuer(unverified.Issuer)
	if realm == "" {
		return nil, fmt.Errorf("неизвестный issuer %q", unverified.Issuer)
	}

	kf, err := j.keys.Keyfunc(realm)
	if err != nil {
		return nil, err
	}

	raw := &keycloakClaims{}
	token, err := jwt.ParseWithClaims(tokenString, raw, kf.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
		jwt.WithIssuer(unverified.Issuer),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("невалидный токен")
	}

	claims := &AuthClaims{
		Realm:             realm,
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Email:             raw.Email,
	}
	if raw.RealmAccess != nil {
		claims.Roles = raw.RealmAccess.Roles
	}
	return claims, nil
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если проверка JWT отключена.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// RequireSuperAdmin возвращает middleware, пропускающий только токены master realm.
// Без проверки JWT (claims отсутствуют) права проверяет Keycloak.
func RequireSuperAdmin(masterRealm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims != nil && !rbac.IsSuperAdmin(claims.Realm, masterRealm) {
				apierrors.Forbidden(w, "Super Admin token is required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
