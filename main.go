package main

import (
	"github.com/ValentinKolb/rKV/cmd"
	_ "github.com/ValentinKolb/rKV/lib/store/lstore"
	_ "github.com/ValentinKolb/rKV/lib/store/redisstore"
)

func main() {
	cmd.Execute()
}
