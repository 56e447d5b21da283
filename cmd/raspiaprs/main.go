package main

import (
	raspiaprs "github.com/doismellburning/raspiaprs/src"
)

func main() {
	raspiaprs.RasPiAPRSMain()
}
