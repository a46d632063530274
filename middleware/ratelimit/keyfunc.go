package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"admission-guard/middleware/ratelimit/domain"
)

// KeyFunc resolve a identidade usada como chave do rate limit.
type KeyFunc func(r *http.Request) domain.Key

// IdentityFunc devolve a identidade autenticada do chamador, quando existir.
// A autenticação em si é de um colaborador externo.
type IdentityFunc func(r *http.Request) (string, bool)

type KeyOptions struct {
	// Identity, se definido e ok=true, tem precedência sobre o IP.
	Identity IdentityFunc
	// RemoteAddrFallback usa o host de r.RemoteAddr antes de cair no bucket
	// "unknown". Útil quando o serviço não está atrás de proxy.
	RemoteAddrFallback bool
}

const (
	headerForwardedFor   = "X-Forwarded-For"
	headerRealIP         = "X-Real-IP"
	headerCFConnectingIP = "CF-Connecting-IP"
)

// DefaultKeyFunc resolve na ordem: identidade autenticada, primeiro IP do
// X-Forwarded-For, X-Real-IP, CF-Connecting-IP e, por fim, domain.UnknownKey.
//
// Todos os chamadores sem header caem no mesmo bucket "unknown". Isso é
// intencional, mas um único cliente pode esgotar a cota desse bucket para os
// demais; use infra.WithSharedKeyQuota para alargá-la.
func DefaultKeyFunc(opts KeyOptions) KeyFunc {
	return func(r *http.Request) domain.Key {
		if opts.Identity != nil {
			if id, ok := opts.Identity(r); ok && id != "" {
				return domain.Key("sub:" + id)
			}
		}

		if ip := ClientIP(r); ip != "" {
			return domain.Key(ip)
		}

		if opts.RemoteAddrFallback {
			host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
			if err == nil {
				if ip := parseIP(host); ip != "" {
					return domain.Key(ip)
				}
			}
		}
		return domain.UnknownKey
	}
}

// ClientIP lê os headers de proxy/CDN. Retorna "" quando nenhum traz um
// endereço IP válido; valores que não são IP contam como ausentes, então um
// header forjado não escolhe o bucket de outra identidade (ex: "sub:<id>").
func ClientIP(r *http.Request) string {
	// pega o primeiro IP do X-Forwarded-For (cliente original)
	if xff := r.Header.Get(headerForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get(headerRealIP)); ip != "" {
		return ip
	}
	return parseIP(r.Header.Get(headerCFConnectingIP))
}

// parseIP devolve a forma canônica do endereço ou "".
func parseIP(v string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
