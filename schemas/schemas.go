// Package schemas хранит JSON-схемы контрактов: тела REST-запросов и события RabbitMQ.
package schemas

import "embed"

//go:embed common events requests
var SchemasFS embed.FS
