// Package calendar вычисляет даты напоминаний в рабочих днях.
//
// Resolver добавляет к стартовой дате заданное число рабочих дней,
// пропуская выходные и национальные праздники страны контейнера.
// Наборы праздников берутся из github.com/rickar/cal/v2; неизвестная
// страна получает французский календарь.
//
// Вычисление детерминировано и не зависит от текущего времени:
// переигрывание планирования цепочки даёт те же даты.
package calendar
