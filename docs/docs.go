// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/draft-album/request-approval": {"post": {"tags": ["drafts"], "summary": "Отправить заявку на одобрение", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}},
        "/draft-album/{id}": {"get": {"tags": ["drafts"], "summary": "Получить заявку", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/draft-album-approval/{approver}": {"get": {"tags": ["approval"], "summary": "Заявки, ожидающие одобрения", "responses": {"200": {"description": "OK"}}}},
        "/draft-album-approval/{draft_id}/{approver}": {"patch": {"tags": ["approval"], "summary": "Одобрить заявку", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}},
        "/draft-album-rejection/{draft_id}/{approver}": {"patch": {"tags": ["approval"], "summary": "Отклонить заявку", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/approver-score/{identity}": {"get": {"tags": ["approval"], "summary": "Очки одобряющего", "responses": {"200": {"description": "OK"}}}},
        "/my-album/{owner}": {"get": {"tags": ["drafts"], "summary": "Заявки владельца", "responses": {"200": {"description": "OK"}}}},
        "/my-album/publish": {"patch": {"tags": ["publication"], "summary": "Начать публикацию", "responses": {"200": {"description": "OK"}, "207": {"description": "Multi-Status"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}}},
        "/my-album/publish/resume": {"patch": {"tags": ["publication"], "summary": "Догрузить контент", "responses": {"200": {"description": "OK"}, "207": {"description": "Multi-Status"}}}},
        "/my-album/publish/{draft_id}/{blob_id}": {"patch": {"tags": ["publication"], "summary": "Подтвердить регистрацию блоба", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}},
        "/my-album/publish/{draft_id}/progress": {"get": {"tags": ["publication"], "summary": "Прогресс публикации", "responses": {"200": {"description": "OK"}}}},
        "/my-album/purchase/{owner}": {"get": {"tags": ["albums"], "summary": "Купленные альбомы", "responses": {"200": {"description": "OK"}}}},
        "/explore-albums": {"get": {"tags": ["albums"], "summary": "Все опубликованные альбомы", "responses": {"200": {"description": "OK"}}}},
        "/explore-album/{album_id}": {"get": {"tags": ["albums"], "summary": "Опубликованный альбом", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/explore-album/purchase/{album_id}/{supporter}": {"post": {"tags": ["albums"], "summary": "Купить альбом", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/explore-album/{album_id}/interaction/{kind}": {"post": {"tags": ["albums"], "summary": "Лайк, репост или сохранение", "responses": {"200": {"description": "OK"}}}},
        "/access/session-key": {"post": {"tags": ["access"], "summary": "Получить сессионный ключ", "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}}}},
        "/access/session-key/{address}/challenge": {"get": {"tags": ["access"], "summary": "Challenge для подписи кошельком", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/access/session-key/{address}/signature": {"post": {"tags": ["access"], "summary": "Отправить подпись challenge", "description": "Подпись принимается, только если ключ принадлежит адресу и подписан текущий challenge.", "responses": {"202": {"description": "Accepted"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}, "429": {"description": "Too Many Requests"}}}},
        "/access/decrypt": {"post": {"tags": ["access"], "summary": "Расшифровать контент альбома", "responses": {"200": {"description": "OK"}, "207": {"description": "Multi-Status"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}}},
        "/dev/ledger/register-blob": {"post": {"tags": ["dev"], "summary": "Зарегистрировать блоб на локальном леджере", "responses": {"200": {"description": "OK"}}}},
        "/health": {"get": {"tags": ["system"], "summary": "Проверка работоспособности", "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Album Vault API",
	Description:      "Access-gated encrypted album publication.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
