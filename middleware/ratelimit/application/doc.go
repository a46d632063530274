// Package application contém os casos de uso (regras de aplicação) do rate limit
// por categoria de endpoint.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Limiter(categoria) devolve o limiter que o middleware consulta.
package application
