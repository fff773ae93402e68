package dhcpserver

// Directives that we register at caddy. The order of middleware plugins
// in the chain follows this list
var Directives = []string{
	"log",
	"interface",
	"database",
	"blocks",
	"lease",
	"offer-timeout",
	"server-delta",
	"forward-timeout",
	"option",
	"peer",
	"sweep",
	"prometheus",
	"serverid",
	"hook",
	"mqtt",
	"gotify",
}
