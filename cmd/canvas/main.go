package main

import (
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2canvas/canvascli"
)

func main() {
	xmain.Main(canvascli.Run)
}
