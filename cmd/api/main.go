package main

import (
	"go.uber.org/fx"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
