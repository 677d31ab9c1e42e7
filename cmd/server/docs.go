package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Updown Market API
// @version         0.1.0
// @description     Binary up/down prediction rounds: AMM + limit book trading and pari-mutuel settlement.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
